package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dustdds-go/dds/internal/qos"

	"github.com/dustdds-go/dds"
)

func newSubscribeCommand() *cobra.Command {
	var pollInterval time.Duration

	subscribeCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "create a DataReader and print samples as they arrive",
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
			sub, err := dp.CreateSubscriber(qos.SubscriberQos{})
			if err != nil {
				return fmt.Errorf("create_subscriber: %w", err)
			}
			dr, err := sub.CreateDataReader(topic, qos.DefaultReaderQos())
			if err != nil {
				return fmt.Errorf("create_datareader: %w", err)
			}

			ctx := cmd.Context()
			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					samples, err := dr.Take(0)
					if err != nil {
						return fmt.Errorf("take: %w", err)
					}
					for _, s := range samples {
						fmt.Printf("[%s] seq=%d writer=%s: %s\n", s.SourceTimestamp.Format(time.RFC3339Nano), s.SequenceNumber, s.WriterGuid, s.Data)
					}
				}
			}
		},
	}

	subscribeCmd.Flags().DurationVar(&pollInterval, "poll-interval", 200*time.Millisecond, "how often to drain the reader's cache")
	return subscribeCmd
}
