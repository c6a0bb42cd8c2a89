package sender

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"eventflow/metrics"
	"eventflow/quota"
	"eventflow/rabbit"

	"github.com/streadway/amqp"
	"go.uber.org/ratelimit"
)

// MessageStore is the slice of the repository the sender writes delivery
// outcomes through.
type MessageStore interface {
	MarkMessageSent(id string) error
	MarkMessageFailed(id, errorMessage string) error
	RecordMessageRetry(id string) error
}

// DeliveryClient pushes one message to the WhatsApp gateway.
type DeliveryClient interface {
	Send(organizationID, phone, content, messageID string) error
}

// QuotaGate is satisfied by quota.Gate.
type QuotaGate interface {
	Check(organizationID string) (*quota.Result, error)
}

type Sender struct {
	store        MessageStore
	gate         QuotaGate
	channel      DeliveryClient
	rl           ratelimit.Limiter
	retryBackoff time.Duration
}

func NewSender(store MessageStore, gate QuotaGate, channel DeliveryClient, sendsPerMinute int, retryBackoff time.Duration) *Sender {
	log.Println("[SENDER] Creating new reminder sender")
	return &Sender{
		store:        store,
		gate:         gate,
		channel:      channel,
		rl:           ratelimit.New(sendsPerMinute, ratelimit.Per(time.Minute)),
		retryBackoff: retryBackoff,
	}
}

// Handler consumes one delivery job from the queue.
func (s *Sender) Handler(data []byte, headers amqp.Table) {
	if messageType, ok := headers["message_type"]; ok && messageType != "reminder_delivery" {
		log.Printf("[SENDER] Ignoring message with type %v", messageType)
		return
	}

	var bag rabbit.ReminderBag
	if err := json.Unmarshal(data, &bag); err != nil {
		log.Printf("[SENDER] Failed to unmarshal reminder: %v", err)
		return
	}
	log.Printf("[SENDER] Processing reminder %s for organization %s with priority %d",
		bag.MessageID, bag.OrganizationID, bag.Priority)

	// The exceeded set spans one dispatcher run: the dispatcher shares a set
	// across everything it publishes and fails exceeded tenants before they
	// reach the queue. A consumed job carries no set of its own, so it gets a
	// fresh one and re-checks its gate.
	s.Deliver(&bag, quota.NewExceededSet())
}

// Deliver sends one reminder, consulting the quota gate first. Tenants
// already marked exceeded in this pass fail without another lookup.
func (s *Sender) Deliver(bag *rabbit.ReminderBag, exceeded quota.ExceededSet) {
	if exceeded.Has(bag.OrganizationID) {
		s.failQuota(bag, 0)
		return
	}

	result, err := s.gate.Check(bag.OrganizationID)
	if err != nil {
		log.Printf("[SENDER] ERROR checking quota for organization %s: %v", bag.OrganizationID, err)
		if markErr := s.store.MarkMessageFailed(bag.MessageID, err.Error()); markErr != nil {
			log.Printf("[SENDER] ERROR marking message %s failed: %v", bag.MessageID, markErr)
		}
		metrics.RecordDelivery("failed", "quota_check")
		return
	}
	if !result.Allowed {
		exceeded.Add(bag.OrganizationID)
		metrics.RecordQuotaRejected(result.Tier)
		s.failQuota(bag, result.Remaining)
		return
	}

	s.rl.Take()

	startTime := time.Now()
	err = s.channel.Send(bag.OrganizationID, bag.ToPhone, bag.Content, bag.MessageID)
	duration := time.Since(startTime)

	if err != nil && isTransientError(err) {
		log.Printf("[SENDER] Transient error sending reminder %s, retrying once: %v (duration: %v)",
			bag.MessageID, err, duration)
		metrics.RecordDeliveryRetry()
		if retryErr := s.store.RecordMessageRetry(bag.MessageID); retryErr != nil {
			log.Printf("[SENDER] ERROR recording retry for message %s: %v", bag.MessageID, retryErr)
		}
		time.Sleep(s.retryBackoff)
		startTime = time.Now()
		err = s.channel.Send(bag.OrganizationID, bag.ToPhone, bag.Content, bag.MessageID)
		duration = time.Since(startTime)
	}

	if err != nil {
		log.Printf("[SENDER] ERROR sending reminder %s: %v (duration: %v)", bag.MessageID, err, duration)
		errorCode := strconv.Itoa(extractErrorCode(err))
		metrics.RecordDelivery("failed", errorCode)
		if markErr := s.store.MarkMessageFailed(bag.MessageID, err.Error()); markErr != nil {
			log.Printf("[SENDER] ERROR marking message %s failed: %v", bag.MessageID, markErr)
		}
		return
	}

	log.Printf("[SENDER] Successfully sent reminder %s (duration: %v)", bag.MessageID, duration)
	metrics.RecordDelivery("sent", "none")
	if markErr := s.store.MarkMessageSent(bag.MessageID); markErr != nil {
		log.Printf("[SENDER] ERROR marking message %s sent: %v", bag.MessageID, markErr)
	}
}

func (s *Sender) failQuota(bag *rabbit.ReminderBag, remaining int) {
	reason := fmt.Sprintf("Quota exceeded: %d messages remaining in this period", remaining)
	log.Printf("[SENDER] Reminder %s blocked for organization %s: %s",
		bag.MessageID, bag.OrganizationID, reason)
	metrics.RecordDelivery("failed", "quota")
	if err := s.store.MarkMessageFailed(bag.MessageID, reason); err != nil {
		log.Printf("[SENDER] ERROR marking message %s failed: %v", bag.MessageID, err)
	}
}

func (s *Sender) Start(consume *rabbit.RabbitClient) {
	log.Println("[SENDER] Starting reminder sender service")
	log.Println("[SENDER] Registering handler with RabbitMQ consumer")

	// The rate limiting is handled in the RabbitClient
	consume.RegisterHandler(s.Handler)

	log.Println("[SENDER] Reminder sender service started successfully")
}

// httpErrorCodeRegex matches HTTP status codes (4xx or 5xx) in error messages
// Uses boundary characters to avoid matching phone numbers or other contexts
var httpErrorCodeRegex = regexp.MustCompile(`(?:^|\s|:|\(|-)([4-5]\d{2})(?:\s|$|:|!|\)|,)`)

// extractErrorCode extracts the HTTP error code from a gateway error using regex
func extractErrorCode(err error) int {
	if err == nil {
		return 200
	}

	errStr := err.Error()
	matches := httpErrorCodeRegex.FindStringSubmatch(errStr)

	if len(matches) >= 2 {
		if code, parseErr := strconv.Atoi(matches[1]); parseErr == nil {
			return code
		}
	}

	return 0 // Unknown error - no HTTP code found
}

// isTransientError reports whether a send failure is worth one retry.
// Rate limiting and server-side errors qualify, rejections do not.
func isTransientError(err error) bool {
	code := extractErrorCode(err)
	if code == 429 || code >= 500 {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{"rate", "timeout", "network", "connection"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
