package context

import (
	"log"

	"eventflow/config"
	"eventflow/rabbit"
	"eventflow/repository"
	"eventflow/whatsapp"
)

type Context struct {
	wa            *whatsapp.Client // private - only accessible through methods
	Repo          *repository.Repository
	RabbitPublish *rabbit.RabbitClient // for publishing only
	RabbitConsume *rabbit.RabbitClient // for consuming only
	Config        *config.Config
}

// PublishReminder queues one reminder delivery bag with the default priority
func (context *Context) PublishReminder(bag rabbit.ReminderBag) error {
	if bag.Priority == 0 {
		bag.Priority = 100 // Medium priority for reminder deliveries
	}
	log.Printf("[CONTEXT] Publishing reminder %s via RabbitMQ with priority %d", bag.MessageID, bag.Priority)

	return context.RabbitPublish.PublishReminder(bag)
}

// GetWhatsApp returns the gateway client - ONLY for sender package use
// This method should ONLY be used by the sender package for actual message sending
func (context *Context) GetWhatsApp() *whatsapp.Client {
	return context.wa
}

// SetWhatsApp sets the gateway client - used during initialization
func (context *Context) SetWhatsApp(client *whatsapp.Client) {
	context.wa = client
}
