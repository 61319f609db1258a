package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hundemeier/go-sacn/packets"
	"github.com/Hundemeier/go-sacn/sacn"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	recvUniverses []int
	recvMulticast bool
	recvDuration  time.Duration

	receiveCmd = &cobra.Command{
		Use:   "receive",
		Short: "print received DMX data",
		Long:  "print every change of the DMX data and every timeout of a universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(cmd.Context())
		},
	}
)

func init() {
	receiveCmd.Flags().IntSliceVarP(&recvUniverses, "universe", "u", nil, "universes to join with --multicast")
	receiveCmd.Flags().BoolVarP(&recvMulticast, "multicast", "m", false, "join the multicast groups of the universes")
	receiveCmd.Flags().DurationVar(&recvDuration, "duration", 0, "stop after this time, 0 runs until interrupted")
	RootCmd.AddCommand(receiveCmd)
}

//newReceiverSocket creates a started ReceiverSocket as configured.
//The returned function closes it and stops the EventLoop.
func newReceiverSocket(component string) (*sacn.ReceiverSocket, func(), error) {
	ifi, err := conf.Interface()
	if err != nil {
		return nil, nil, err
	}
	backend, loop, closeLoop, err := newLoop()
	if err != nil {
		return nil, nil, err
	}
	recv, err := sacn.NewReceiverSocket(conf.Bind.Address, ifi,
		sacn.WithReceiverBackend(backend, loop),
		sacn.WithReceiverPort(conf.Bind.Port),
		sacn.WithReceiverLogger(log.WithField("component", component)),
	)
	if err != nil {
		closeLoop()
		return nil, nil, err
	}
	return recv, func() {
		recv.Close()
		closeLoop()
	}, nil
}

func signalContext(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	if duration <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, duration)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runReceive(ctx context.Context) error {
	ctx, cancel := signalContext(ctx, recvDuration)
	defer cancel()

	recv, closeRecv, err := newReceiverSocket("sacn/receiver")
	if err != nil {
		return err
	}
	recv.SetOnChangeCallback(func(old, new *packets.DataPacket) {
		log.WithFields(log.Fields{
			"universe": new.Universe(),
			"source":   new.SourceName(),
			"cid":      uuid.UUID(new.CID()),
			"priority": new.Priority(),
			"sequence": new.Sequence(),
		}).Infof("data: %v", new.Data())
	})
	recv.SetTimeoutCallback(func(universe uint16) {
		log.Warnf("timeout on universe %v", universe)
	})
	recv.SetSyncCallback(func(p *packets.SyncPacket) {
		log.Debugf("sync on universe %v from %v", p.SyncAddress(), uuid.UUID(p.CID()))
	})
	if err := recv.Start(); err != nil {
		closeRecv()
		return fmt.Errorf("failed to start receiver: %w", err)
	}
	defer closeRecv()

	if recvMulticast {
		for _, flag := range recvUniverses {
			univ, err := parseUniverse(flag, true)
			if err != nil {
				return err
			}
			if err := recv.JoinUniverse(univ); err != nil {
				return fmt.Errorf("failed to join universe %v: %w", univ, err)
			}
		}
	}
	log.Infof("receiving on %v", recv.LocalAddr())
	<-ctx.Done()
	log.Infof("%v socket errors, %v invalid packets", recv.Errors(), recv.DecodeErrors())
	return nil
}
