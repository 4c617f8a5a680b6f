package mq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"Heritage/config"
)

const (
	// EffectExchange 升级效果统一走一个 topic exchange，按效果类型路由
	EffectExchange = "liveness.effects"

	ReminderQueue    = "liveness.reminder"
	AlertQueue       = "liveness.alert"
	InheritanceQueue = "liveness.inheritance"

	ReminderRoutingKey    = "effect.reminder"
	AlertRoutingKey       = "effect.alert"
	InheritanceRoutingKey = "effect.inheritance"
)

var (
	conn    *amqp.Connection
	mqOnce  sync.Once
	initErr error
)

func Init() error {
	mqOnce.Do(func() {
		url := config.Cfg.GetRabbitMQURL()
		conn, initErr = amqp.Dial(url)
		if initErr != nil {
			return
		}

		initErr = declareTopology()
	})

	return initErr
}

func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	if conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// declareTopology 声明 exchange、队列与绑定，幂等操作，启动时每个进程都会执行一遍
func declareTopology() error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		EffectExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{ReminderQueue, ReminderRoutingKey},
		{AlertQueue, AlertRoutingKey},
		{InheritanceQueue, InheritanceRoutingKey},
	}

	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return err
		}
		if err := ch.QueueBind(b.queue, b.routingKey, EffectExchange, false, nil); err != nil {
			return err
		}
	}

	return nil
}
