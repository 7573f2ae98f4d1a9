// Package cmd implements ddsctl's cobra command tree.
package cmd

import (
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	domainId     int
	topicName    string
	typeName     string
	unicastAddr  string
	unicastPort  uint16
	verbose      bool
)

// NewRootCommand builds the ddsctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ddsctl",
		Short: "ddsctl exercises a DomainParticipant from the command line",
		Long: `ddsctl creates one DomainParticipant on a domain, publishing or
subscribing on a single topic so the RTPS writer/reader state machines can be
driven and observed outside of a test binary.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.InfoLevel)
			}
			return nil
		},
	}

	root.PersistentFlags().IntVar(&domainId, "domain", 0, "RTPS domain id")
	root.PersistentFlags().StringVar(&topicName, "topic", "Example", "topic name")
	root.PersistentFlags().StringVar(&typeName, "type", "String", "topic type name")
	root.PersistentFlags().StringVar(&unicastAddr, "bind", "0.0.0.0", "unicast address to bind the participant's socket to")
	root.PersistentFlags().Uint16Var(&unicastPort, "port", 0, "unicast port; 0 picks the domain's well-known metatraffic port")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newPublishCommand())
	root.AddCommand(newSubscribeCommand())
	return root
}

func bindAddr() net.IP {
	if ip := net.ParseIP(unicastAddr); ip != nil {
		return ip
	}
	return net.IPv4zero
}
