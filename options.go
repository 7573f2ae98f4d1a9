package dds

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dustdds-go/dds/internal/guid"
)

// ParticipantOption configures a DomainParticipant at creation, following the
// same functional-options shape as the teacher's responder.Option.
type ParticipantOption func(*participantConfig) error

type participantConfig struct {
	unicastAddr   net.IP
	unicastPort   uint16
	multicastLocs []guid.Locator
	leaseDuration time.Duration
	log           *logrus.Entry
}

func defaultParticipantConfig() *participantConfig {
	return &participantConfig{
		unicastAddr:   net.IPv4zero,
		leaseDuration: 20 * time.Second,
		log:           logrus.NewEntry(logrus.StandardLogger()),
	}
}

// WithUnicastAddress binds the participant's unicast socket to addr instead of
// the wildcard address.
func WithUnicastAddress(addr net.IP) ParticipantOption {
	return func(c *participantConfig) error {
		c.unicastAddr = addr
		return nil
	}
}

// WithUnicastPort pins the unicast port instead of letting the OS pick one.
func WithUnicastPort(port uint16) ParticipantOption {
	return func(c *participantConfig) error {
		c.unicastPort = port
		return nil
	}
}

// WithMulticastLocators joins the given multicast groups for discovery and
// user traffic.
func WithMulticastLocators(locs ...guid.Locator) ParticipantOption {
	return func(c *participantConfig) error {
		c.multicastLocs = append(c.multicastLocs, locs...)
		return nil
	}
}

// WithLeaseDuration overrides the default SPDP lease duration.
func WithLeaseDuration(d time.Duration) ParticipantOption {
	return func(c *participantConfig) error {
		c.leaseDuration = d
		return nil
	}
}

// WithLogger supplies a pre-fielded logrus.Entry instead of the package
// default.
func WithLogger(log *logrus.Entry) ParticipantOption {
	return func(c *participantConfig) error {
		c.log = log
		return nil
	}
}
