package network

type Publisher interface {
	PublishControlCommand(command ControlCommandMessage) error
	PublishSettingsUpdate(update SettingsUpdateMessage) error
}

type msgPublisher struct {
	amqp Messaging
}

func NewMsgPublisher(amqp Messaging) Publisher {
	return &msgPublisher{amqp}
}

func (mp *msgPublisher) PublishControlCommand(command ControlCommandMessage) error {
	return mp.amqp.PublishPersistentMessage(RoutingKeyControl, command)
}

func (mp *msgPublisher) PublishSettingsUpdate(update SettingsUpdateMessage) error {
	return mp.amqp.PublishPersistentMessage(RoutingKeySettings, update)
}
