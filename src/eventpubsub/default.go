package eventpubsub

import (
	"fmt"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventmodels"
)

var bus EventBus.Bus

func Init() {
	bus = EventBus.New()
}

func Publish(publisherName string, topic eventmodels.EventName, event interface{}) {
	log.Tracef("%s: publish %s: %v", publisherName, topic, event)
	bus.Publish(string(topic), event)
}

func Subscribe(subscriberName string, topic eventmodels.EventName, callbackFn interface{}) error {
	if err := bus.SubscribeAsync(string(topic), callbackFn, false); err != nil {
		return fmt.Errorf("Subscribe: %s failed to subscribe to %s: %w", subscriberName, topic, err)
	}

	log.Infof("%s subscribed to topic %s", subscriberName, topic)
	return nil
}

// SubscribeSync delivers events on the publisher's goroutine, preserving
// publish order. The tick pipeline depends on this: ticks for one symbol
// must reach the ladder runner in arrival order.
func SubscribeSync(subscriberName string, topic eventmodels.EventName, callbackFn interface{}) error {
	if err := bus.Subscribe(string(topic), callbackFn); err != nil {
		return fmt.Errorf("SubscribeSync: %s failed to subscribe to %s: %w", subscriberName, topic, err)
	}

	log.Infof("%s subscribed to topic %s (sync)", subscriberName, topic)
	return nil
}

func Unsubscribe(topic eventmodels.EventName, callbackFn interface{}) error {
	return bus.Unsubscribe(string(topic), callbackFn)
}
