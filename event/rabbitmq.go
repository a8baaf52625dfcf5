// Package event carries the audit trail over RabbitMQ: mutating chat
// operations publish to the audit queue, and a consumer appends them to the
// audit log file. The privileged conversation delete always passes through
// here.
package event

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"classboard-service/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ActionHeader = "x-action"
	AuditQueue   = "audit"
	AuditLogFile = "log/audit.log"
)

// Record is one audit log line.
type Record struct {
	Time    int64           `json:"time"`
	Service string          `json:"service"`
	Action  string          `json:"action"`
	Data    json.RawMessage `json:"data"`
}

// Bus is the connected audit publisher. It satisfies chat.Auditor.
type Bus struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queues  map[string]amqp.Queue
	logFile *os.File
	log     *zap.SugaredLogger
}

// Connect dials RabbitMQ, declares the queues and opens the audit log file.
func Connect(queues []string, log *zap.SugaredLogger) (*Bus, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	conn, err := amqp.Dial(fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		config.Config("RABBITMQ_USER"),
		config.Config("RABBITMQ_PASSWORD"),
		config.Config("RABBITMQ_HOST"),
		config.Config("RABBITMQ_PORT"),
	))
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	bus := &Bus{
		conn:    conn,
		channel: channel,
		queues:  make(map[string]amqp.Queue),
		log:     log,
	}

	for _, name := range queues {
		queue, err := channel.QueueDeclare(
			name,  // name
			false, // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("declare rabbitmq queue %s: %w", name, err)
		}
		bus.queues[name] = queue
	}

	if err := os.MkdirAll("log", 0700); err != nil {
		bus.Close()
		return nil, err
	}
	bus.logFile, err = os.OpenFile(AuditLogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		bus.Close()
		return nil, err
	}

	return bus, nil
}

// Audit publishes an audit event. Failures are logged and swallowed: the
// audit trail must never fail the operation it records.
func (b *Bus) Audit(action string, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		b.log.Errorw("audit marshal failed", "action", action, "err", err)
		return
	}

	err = b.channel.Publish(
		"",         // exchange
		AuditQueue, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			Headers:     amqp.Table{ActionHeader: action},
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		b.log.Errorw("audit publish failed", "action", action, "err", err)
	}
}

// RunAuditLog consumes the audit queue and appends one JSON line per event
// to the audit log. Meant to run in its own goroutine; it returns when the
// channel closes.
func (b *Bus) RunAuditLog() error {
	msgs, err := b.channel.Consume(
		AuditQueue, // queue
		"",         // consumer
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("consume audit queue: %w", err)
	}

	for msg := range msgs {
		action, _ := msg.Headers[ActionHeader].(string)

		line, err := json.Marshal(Record{
			Time:    time.Now().UnixMicro(),
			Service: "classboard-service",
			Action:  action,
			Data:    msg.Body,
		})
		if err == nil {
			b.logFile.Write(append(line, '\n'))
		}

		msg.Ack(false)
	}
	return nil
}

func (b *Bus) Close() {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
	if b.logFile != nil {
		b.logFile.Close()
	}
}
