package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client posts outbound messages to the WhatsApp gateway endpoint. The
// pipeline never interprets channel wire formats beyond success/failure and
// an error string used for retry classification.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

func NewClient(apiURL, token string) *Client {
	log.Printf("[WHATSAPP] Creating WhatsApp gateway client for %s", apiURL)
	return &Client{
		apiURL: apiURL,
		token:  token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NormalizePhone converts local numbers (05X...) to international form (972X...)
func NormalizePhone(phone string) string {
	if strings.HasPrefix(phone, "0") {
		return "972" + phone[1:]
	}
	return phone
}

type sendRequest struct {
	OrganizationID string `json:"organization_id"`
	Phone          string `json:"phone"`
	Message        string `json:"message"`
	MessageID      string `json:"message_id,omitempty"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Send delivers one message and reports success or failure. The error string
// carries the gateway's HTTP status code when the request itself failed, so
// callers can classify transient failures.
func (c *Client) Send(organizationID, phone, content, messageID string) error {
	body, err := json.Marshal(sendRequest{
		OrganizationID: organizationID,
		Phone:          NormalizePhone(phone),
		Message:        content,
		MessageID:      messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build send request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode gateway response: %v", err)
	}
	if !result.Success {
		if result.Error == "" {
			result.Error = "send failed"
		}
		return fmt.Errorf("%s", result.Error)
	}

	return nil
}
