package rabbit

import (
	"encoding/json"
	"log"
	"time"

	"eventflow/metrics"

	"github.com/streadway/amqp"
	"go.uber.org/ratelimit"
)

type RabbitClient struct {
	url        string
	queueName  string
	connection *amqp.Connection
	channel    *amqp.Channel
}

type Handler func(data []byte, headers amqp.Table)

// ReminderBag carries one due reminder from the dispatcher to the sender
type ReminderBag struct {
	MessageID      string
	OrganizationID string
	EventID        string
	ToPhone        string
	Content        string
	Priority       uint8 // 0..255
}

func NewRabbitClient(url string, queueName string) *RabbitClient {
	log.Printf("[RABBIT] Creating new RabbitMQ client for queue: %s", queueName)

	client := &RabbitClient{
		url:       url,
		queueName: queueName,
	}

	err := client.connect()
	if err != nil {
		log.Printf("[RABBIT] Initial connection failed: %v. Will retry...", err)
	}

	return client
}

func (c *RabbitClient) connect() error {
	log.Printf("[RABBIT] Connecting to RabbitMQ at %s", c.url)

	// Close existing connection if any
	if c.connection != nil && !c.connection.IsClosed() {
		c.connection.Close()
	}
	if c.channel != nil {
		c.channel.Close()
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	c.connection = conn

	ch, err := c.connection.Channel()
	if err != nil {
		c.connection.Close()
		return err
	}
	c.channel = ch

	// Declare queue with priority support
	args := amqp.Table{
		"x-max-priority": int32(10),
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		args,  // arguments for priority queue
	)
	if err != nil {
		c.channel.Close()
		c.connection.Close()
		return err
	}

	log.Printf("[RABBIT] Connected successfully to queue: %s", c.queueName)
	return nil
}

func (c *RabbitClient) isConnectionOpen() bool {
	if c.connection == nil || c.connection.IsClosed() {
		return false
	}
	if c.channel == nil {
		return false
	}

	// Test channel by checking if we can get a queue (this will fail if channel is closed)
	_, err := c.channel.QueueDeclarePassive(
		c.queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // args
	)

	// If queue doesn't exist or channel is closed, we'll get an error
	// For our purposes, any error means the channel isn't working properly
	return err == nil
}

func (c *RabbitClient) ensureConnection() error {
	if !c.isConnectionOpen() {
		log.Printf("[RABBIT] Connection is closed, attempting to reconnect...")
		return c.connect()
	}
	return nil
}

// PublishReminder publishes one reminder delivery bag
func (c *RabbitClient) PublishReminder(bag ReminderBag) error {
	log.Printf("[RABBIT] Publishing reminder message %s for organization %s with priority %d",
		bag.MessageID, bag.OrganizationID, bag.Priority)

	// Ensure we have a valid connection
	if err := c.ensureConnection(); err != nil {
		log.Printf("[RABBIT] Failed to establish connection: %v", err)
		metrics.RecordRabbitMQMessage("published", c.queueName, false)
		return err
	}

	body, err := json.Marshal(bag)
	if err != nil {
		log.Printf("[RABBIT] Failed to marshal reminder bag: %v", err)
		return err
	}

	err = c.channel.Publish(
		"",          // exchange
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Priority:     bag.Priority,
			Headers: amqp.Table{
				"message_type": "reminder_delivery",
				"message_id":   bag.MessageID,
			},
		},
	)

	if err != nil {
		log.Printf("[RABBIT] Failed to publish reminder: %v", err)
		// Reset connection on publish error
		c.channel = nil
		c.connection = nil
		metrics.RecordRabbitMQMessage("published", c.queueName, false)
		return err
	}

	log.Printf("[RABBIT] Reminder published successfully")
	metrics.RecordRabbitMQMessage("published", c.queueName, true)
	return nil
}

func (c *RabbitClient) RegisterHandler(handler Handler) {
	log.Printf("[RABBIT] Registering message handler for queue: %s", c.queueName)

	// Rate limiter - 30 messages per second
	rl := ratelimit.New(30)

	go func() {
		for {
			// Ensure we have a valid connection
			if err := c.ensureConnection(); err != nil {
				log.Printf("[RABBIT] Reconnection failed: %v. Retrying in 5 seconds...", err)
				time.Sleep(5 * time.Second)
				continue
			}

			msgs, err := c.channel.Consume(
				c.queueName,
				"",    // consumer tag
				false, // auto-ack
				false, // exclusive
				false, // no-local
				false, // no-wait
				nil,   // args
			)

			if err != nil {
				log.Printf("[RABBIT] Failed to register consumer: %v", err)
				// Reset connection on consumer error
				c.channel = nil
				c.connection = nil
				time.Sleep(5 * time.Second)
				continue
			}

			log.Printf("[RABBIT] Consumer registered, waiting for messages...")

			for msg := range msgs {
				rl.Take() // Rate limiting

				log.Printf("[RABBIT] Processing message")
				handler(msg.Body, msg.Headers)

				if err := msg.Ack(false); err != nil {
					log.Printf("[RABBIT] Failed to acknowledge message: %v", err)
					// Record failed consume metric
					metrics.RecordRabbitMQMessage("consumed", c.queueName, false)
				} else {
					// Record successful consume metric
					metrics.RecordRabbitMQMessage("consumed", c.queueName, true)
				}
			}

			log.Printf("[RABBIT] Consumer channel closed, reconnecting...")
			// Reset connection for reconnection
			c.channel = nil
			c.connection = nil
		}
	}()
}

func (c *RabbitClient) Close() {
	log.Printf("[RABBIT] Closing RabbitMQ connection")
	if c.channel != nil {
		c.channel.Close()
	}
	if c.connection != nil {
		c.connection.Close()
	}
}
