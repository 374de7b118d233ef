package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/loadwatch/loadgate/pkg/gateways/weight/network"
)

type PublisherMock struct {
	mock.Mock
}

func (p *PublisherMock) PublishControlCommand(command network.ControlCommandMessage) error {
	args := p.Called(command)
	return args.Error(0)
}

func (p *PublisherMock) PublishSettingsUpdate(update network.SettingsUpdateMessage) error {
	args := p.Called(update)
	return args.Error(0)
}
