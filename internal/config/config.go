// Package config loads the YAML participant profile used by cmd/ddsctl and any
// embedder that wants declarative QoS/locator configuration instead of
// building qos.WriterQos/ReaderQos values by hand, in the style of the
// examples pack's YAML-driven config structs (e.g. projectcontour's
// ContourConfiguration and keda's ScaledObject spec) decoded with
// gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dustdds-go/dds/internal/qos"
)

// Profile is the top-level document shape.
type Profile struct {
	DomainId     int              `yaml:"domainId"`
	ParticipantId int             `yaml:"participantId"`
	LogLevel     string           `yaml:"logLevel"`
	Unicast      LocatorConfig    `yaml:"unicast"`
	Multicast    []LocatorConfig  `yaml:"multicast"`
	Writers      map[string]QosProfile `yaml:"writers"`
	Readers      map[string]QosProfile `yaml:"readers"`
}

// LocatorConfig is the YAML shape of one UDPv4 locator.
type LocatorConfig struct {
	Address string `yaml:"address"`
	Port    uint16 `yaml:"port"`
}

// QosProfile is the YAML-friendly subset of qos.WriterQos/ReaderQos that a
// deployment typically wants to override; anything not set keeps the
// qos.DefaultWriterQos()/DefaultReaderQos() value.
type QosProfile struct {
	Reliability string `yaml:"reliability"` // "best_effort" | "reliable"
	Durability  string `yaml:"durability"`  // "volatile" | "transient_local" | "transient" | "persistent"
	HistoryKind string `yaml:"historyKind"` // "keep_last" | "keep_all"
	HistoryDepth int   `yaml:"historyDepth"`
	DeadlinePeriod time.Duration `yaml:"deadlinePeriod"`
}

// Load reads and parses a Profile from path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &p, nil
}

// ApplyToWriterQos overrides fields of base that q sets explicitly.
func (q QosProfile) ApplyToWriterQos(base qos.WriterQos) (qos.WriterQos, error) {
	if err := applyCommon(&base.Reliability, &base.Durability, &base.History, &base.Deadline, q); err != nil {
		return qos.WriterQos{}, err
	}
	return base, nil
}

// ApplyToReaderQos mirrors ApplyToWriterQos for the subscription side.
func (q QosProfile) ApplyToReaderQos(base qos.ReaderQos) (qos.ReaderQos, error) {
	if err := applyCommon(&base.Reliability, &base.Durability, &base.History, &base.Deadline, q); err != nil {
		return qos.ReaderQos{}, err
	}
	return base, nil
}

func applyCommon(reliability *qos.Reliability, durability *qos.Durability, history *qos.History, deadline *qos.Deadline, q QosProfile) error {
	switch q.Reliability {
	case "", "best_effort":
		if q.Reliability != "" {
			reliability.Kind = qos.BestEffort
		}
	case "reliable":
		reliability.Kind = qos.Reliable
	default:
		return fmt.Errorf("config: unknown reliability %q", q.Reliability)
	}
	switch q.Durability {
	case "":
	case "volatile":
		durability.Kind = qos.Volatile
	case "transient_local":
		durability.Kind = qos.TransientLocal
	case "transient":
		durability.Kind = qos.Transient
	case "persistent":
		durability.Kind = qos.Persistent
	default:
		return fmt.Errorf("config: unknown durability %q", q.Durability)
	}
	switch q.HistoryKind {
	case "":
	case "keep_last":
		history.Kind = qos.KeepLast
	case "keep_all":
		history.Kind = qos.KeepAll
	default:
		return fmt.Errorf("config: unknown historyKind %q", q.HistoryKind)
	}
	if q.HistoryDepth > 0 {
		history.Depth = q.HistoryDepth
	}
	if q.DeadlinePeriod > 0 {
		deadline.Period = q.DeadlinePeriod
	}
	return nil
}
