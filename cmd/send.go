package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Hundemeier/go-sacn/internal/config"
	"github.com/Hundemeier/go-sacn/sacn"
	"github.com/Hundemeier/go-sacn/transport"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	sendUniverses   []int
	sendData        []int
	sendMulticast   bool
	sendDestination string
	sendFPS         int
	sendDuration    time.Duration

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "send DMX data",
		Long: "send DMX data on the universes of the config file and the ones given with --universe.\n" +
			"The data is sent until the program is interrupted or --duration passed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context())
		},
	}
)

func init() {
	sendCmd.Flags().IntSliceVarP(&sendUniverses, "universe", "u", nil, "universes to send")
	sendCmd.Flags().IntSliceVar(&sendData, "data", nil, "channel values of the universes given with --universe")
	sendCmd.Flags().BoolVarP(&sendMulticast, "multicast", "m", false, "send the universes via multicast")
	sendCmd.Flags().StringVar(&sendDestination, "destination", "", "unicast destination, broadcast if empty")
	sendCmd.Flags().IntVar(&sendFPS, "fps", 0, "frames per second, overrides the config")
	sendCmd.Flags().DurationVar(&sendDuration, "duration", 0, "stop after this time, 0 runs until interrupted")
	RootCmd.AddCommand(sendCmd)
}

//sendOutputs merges the universes of the config with the ones of the flags
func sendOutputs() (map[uint16]config.Universe, error) {
	data := make([]byte, 0, len(sendData))
	for _, v := range sendData {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("channel value %v is not in range [0-255]", v)
		}
		data = append(data, byte(v))
	}
	outputs := make(map[uint16]config.Universe, len(conf.Universes)+len(sendUniverses))
	for univ, u := range conf.Universes {
		outputs[univ] = u
	}
	for _, flag := range sendUniverses {
		univ, err := parseUniverse(flag, false)
		if err != nil {
			return nil, err
		}
		outputs[univ] = config.Universe{
			Multicast:   sendMulticast,
			Destination: sendDestination,
			Data:        data,
		}
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no universes to send, use --universe or the config file")
	}
	return outputs, nil
}

func runSend(ctx context.Context) error {
	ctx, cancel := signalContext(ctx, sendDuration)
	defer cancel()

	outputs, err := sendOutputs()
	if err != nil {
		return err
	}
	cid, err := conf.CID()
	if err != nil {
		return err
	}
	backend, loop, closeLoop, err := newLoop()
	if err != nil {
		return err
	}
	defer closeLoop()
	fps := conf.FPS
	if sendFPS > 0 {
		fps = sendFPS
	}
	if fps <= 0 {
		fps = transport.DefaultFPS
	}

	logger := log.WithField("component", "sacn/transmitter")
	trans := sacn.NewTransmitter(cid, conf.Source.Name,
		sacn.WithBind(conf.Bind.Address, -1),
		sacn.WithFPS(fps),
		sacn.WithUniverseDiscovery(conf.Discovery),
		sacn.WithBackend(backend, loop),
		sacn.WithLogger(logger),
	)

	universes := make([]uint16, 0, len(outputs))
	for univ := range outputs {
		universes = append(universes, univ)
	}
	sort.Slice(universes, func(i, j int) bool { return universes[i] < universes[j] })
	for _, univ := range universes {
		u := outputs[univ]
		err := trans.Activate(univ, sacn.OutputOptions{
			Multicast:    u.Multicast,
			Destination:  u.Destination,
			TTL:          u.TTL,
			Priority:     u.Priority,
			PreviewData:  u.Preview,
			SyncUniverse: u.Sync,
		})
		if err != nil {
			return fmt.Errorf("failed to activate universe %v: %w", univ, err)
		}
		if err := trans.Update(univ, u.Data); err != nil {
			return err
		}
	}

	if err := trans.Start(); err != nil {
		return fmt.Errorf("failed to start transmitter: %w", err)
	}
	logger.Infof("sending universes %v as %q (cid %v) with %v fps", universes, conf.Source.Name,
		uuid.UUID(cid), fps)
	<-ctx.Done()

	for _, univ := range universes {
		trans.Deactivate(univ)
	}
	//Stop sends the stream termination packets before the socket is closed
	trans.Stop()
	return nil
}
