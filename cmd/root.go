package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/Hundemeier/go-sacn/internal/config"
	"github.com/Hundemeier/go-sacn/metrics"
	"github.com/Hundemeier/go-sacn/packets"
	"github.com/Hundemeier/go-sacn/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	debug       bool
	configPath  string
	metricsAddr string
	conf        *config.Config

	RootCmd = &cobra.Command{
		Use:   "sacn",
		Short: "send and receive sACN (E1.31) DMX data",
		Long:  "send and receive sACN (E1.31) DMX data over UDP",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			var err error
			conf, err = config.Load(configPath)
			if err != nil {
				return err
			}
			log.Debugf("config: %+v", conf)
			if metricsAddr != "" {
				conf.Metrics = metricsAddr
			}
			if conf.Metrics != "" {
				serveMetrics(conf.Metrics)
			}
			return nil
		},
	}
)

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Errorf("failed to execute command: %v", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debugging")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file location")
	RootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "serve prometheus metrics on this address")
}

func serveMetrics(addr string) {
	metrics.Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Infof("serving metrics on %v/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server failed: %v", err)
		}
	}()
}

//newLoop starts an EventLoop if the config asks for one. The returned function stops it.
func newLoop() (transport.Backend, *transport.Loop, func(), error) {
	backend, err := conf.TransportBackend()
	if err != nil {
		return 0, nil, nil, err
	}
	if backend != transport.EventLoop {
		return backend, nil, func() {}, nil
	}
	loop := transport.NewLoop()
	loop.Start()
	return backend, loop, loop.Close, nil
}

//parseUniverse checks a universe given as flag. The discovery universe is only accepted if allowDiscovery is set.
func parseUniverse(univ int, allowDiscovery bool) (uint16, error) {
	if univ >= 0 && univ <= 0xffff {
		u := uint16(univ)
		if packets.ValidUniverse(u) || (allowDiscovery && u == packets.DiscoveryUniverse) {
			return u, nil
		}
	}
	return 0, fmt.Errorf("universe %v is not in range [%v-%v]", univ, packets.MinUniverse, packets.MaxUniverse)
}
