package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Hundemeier/go-sacn/packets"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	discoverDuration time.Duration

	discoverCmd = &cobra.Command{
		Use:   "discover",
		Short: "list the universes of all sources on the network",
		Long: "listen for universe discovery packets and print the universes of every source.\n" +
			"Sources advertise their universes every 10 seconds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd.Context())
		},
	}
)

func init() {
	discoverCmd.Flags().DurationVar(&discoverDuration, "duration", 0, "stop after this time, 0 runs until interrupted")
	RootCmd.AddCommand(discoverCmd)
}

//sourcePages collects the pages of the discovery packets of one source
type sourcePages struct {
	name  string
	pages map[byte][]uint16
}

func runDiscover(ctx context.Context) error {
	ctx, cancel := signalContext(ctx, discoverDuration)
	defer cancel()

	recv, closeRecv, err := newReceiverSocket("sacn/discover")
	if err != nil {
		return err
	}
	var mu sync.Mutex
	sources := make(map[[16]byte]*sourcePages)
	recv.SetDiscoveryCallback(func(p *packets.UniverseDiscoveryPacket) {
		mu.Lock()
		defer mu.Unlock()
		src, ok := sources[p.CID()]
		if !ok || p.Page() == 0 {
			src = &sourcePages{pages: make(map[byte][]uint16)}
			sources[p.CID()] = src
		}
		src.name = p.SourceName()
		src.pages[p.Page()] = p.Universes()
		if len(src.pages) != int(p.LastPage())+1 {
			return
		}
		universes := make([]uint16, 0)
		for page := 0; page <= int(p.LastPage()); page++ {
			universes = append(universes, src.pages[byte(page)]...)
		}
		log.WithFields(log.Fields{
			"source": src.name,
			"cid":    uuid.UUID(p.CID()),
		}).Infof("universes: %v", universes)
	})
	if err := recv.Start(); err != nil {
		closeRecv()
		return fmt.Errorf("failed to start receiver: %w", err)
	}
	defer closeRecv()
	if err := recv.JoinUniverse(packets.DiscoveryUniverse); err != nil {
		//discovery packets are also broadcasted
		log.Warnf("failed to join the discovery universe: %v", err)
	}
	log.Infof("listening for universe discovery on %v", recv.LocalAddr())
	<-ctx.Done()
	return nil
}
