package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dustdds-go/dds/internal/qos"

	"github.com/dustdds-go/dds"
)

func newPublishCommand() *cobra.Command {
	var message string
	var period time.Duration

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "create a DataWriter and write one or more samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			dp, err := newParticipant()
			if err != nil {
				return err
			}
			defer dds.GetInstance().DeleteParticipant(dp)

			topic, err := dp.CreateTopic(topicName, typeName)
			if err != nil {
				return fmt.Errorf("create_topic: %w", err)
			}
			pub, err := dp.CreatePublisher(qos.PublisherQos{})
			if err != nil {
				return fmt.Errorf("create_publisher: %w", err)
			}
			dw, err := pub.CreateDataWriter(topic, qos.DefaultWriterQos())
			if err != nil {
				return fmt.Errorf("create_datawriter: %w", err)
			}

			ctx := cmd.Context()
			for {
				sn, err := dw.Write(ctx, []byte(message))
				if err != nil {
					return fmt.Errorf("write: %w", err)
				}
				fmt.Printf("wrote sample %d on %s/%s\n", sn, topicName, typeName)
				if period <= 0 {
					return nil
				}
				select {
				case <-time.After(period):
				case <-ctx.Done():
					return nil
				}
			}
		},
	}

	publishCmd.Flags().StringVar(&message, "message", "hello", "payload to write")
	publishCmd.Flags().DurationVar(&period, "period", 0, "if set, write repeatedly at this interval instead of once")
	return publishCmd
}

func newParticipant() (*dds.DomainParticipant, error) {
	opts := []dds.ParticipantOption{dds.WithUnicastAddress(bindAddr())}
	if unicastPort != 0 {
		opts = append(opts, dds.WithUnicastPort(unicastPort))
	}
	dp, err := dds.GetInstance().CreateParticipant(domainId, opts...)
	if err != nil {
		return nil, fmt.Errorf("create_participant: %w", err)
	}
	dp.Enable()
	return dp, nil
}
