package network

type Subscriber interface {
	SubscribeToDeviceMessages(msgChan chan InMsg) error
}

type msgSubscriber struct {
	amqp Messaging
}

func NewMsgSubscriber(amqp Messaging) Subscriber {
	return &msgSubscriber{amqp}
}

func (ms *msgSubscriber) SubscribeToDeviceMessages(msgChan chan InMsg) error {
	var err error
	subscribe := func(msgChan chan InMsg, key string) {
		if err != nil {
			return
		}
		err = ms.amqp.OnMessage(msgChan, key)
	}

	subscribe(msgChan, RoutingKeyTelemetry)
	subscribe(msgChan, RoutingKeyStatus)

	return err
}
