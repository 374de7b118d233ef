package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/loadwatch/loadgate/pkg/gateways/weight/network"
)

type SubscriberMock struct {
	mock.Mock
}

func (s *SubscriberMock) SubscribeToDeviceMessages(msgChan chan network.InMsg) error {
	args := s.Called(msgChan)
	return args.Error(0)
}
