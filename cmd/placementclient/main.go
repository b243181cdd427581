// Command placementclient submits the client workloads named in a
// topology document to a running placementcontroller, one place_client
// RPC per client, retrying transient RPC failures with backoff.
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/uber/workloadcompactor/pkg/common/backoff"
	"github.com/uber/workloadcompactor/pkg/common/rpc"
	"github.com/uber/workloadcompactor/pkg/placement"
	"github.com/uber/workloadcompactor/pkg/topology"
)

var (
	app = kingpin.New("placementclient", "WorkloadCompactor placement client")

	topologyFile = app.Flag("topology", "topology document listing the clients to place").
			Short('t').
			Required().
			ExistingFile()

	controllerAddr = app.Flag("controller", "placementcontroller peer address").
			Short('a').
			Required().
			String()

	maxAttempts = app.Flag("max-attempts", "retry attempts per client on a transient RPC failure").
			Default("3").
			Int()

	retryInterval = app.Flag("retry-interval", "delay between retry attempts").
			Default("1s").
			Duration()

	remove = app.Flag("remove", "remove the named client instead of placing it").
		Bool()

	clientName = app.Flag("client", "place/remove only this single client name, instead of every client in the topology document").
			String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := topology.LoadConfig(*topologyFile)
	if err != nil {
		log.WithError(err).Fatal("cannot load topology document")
	}

	dispatcher := rpc.NewDispatcher("placementclient", nil, yarpc.Outbounds{
		"placementcontroller": rpc.NewOutboundHTTP(*controllerAddr),
	})
	rpc.StartDispatcher(dispatcher)
	defer dispatcher.Stop()

	client := placement.NewClient(dispatcher.ClientConfig("placementcontroller"))

	clients := cfg.Clients
	if *clientName != "" {
		clients = filterClients(clients, *clientName)
		if len(clients) == 0 {
			log.WithField("client", *clientName).Fatal("no such client in the topology document")
		}
	}

	policy := backoff.NewRetryPolicy(*maxAttempts, *retryInterval)

	failures := 0
	for _, c := range clients {
		if *remove {
			if err := removeClient(client, c.Name, policy); err != nil {
				log.WithError(err).WithField("client", c.Name).Error("remove_client failed")
				failures++
			}
			continue
		}
		if err := placeClient(client, c, policy); err != nil {
			log.WithError(err).WithField("client", c.Name).Error("place_client failed")
			failures++
		}
	}

	if failures > 0 {
		log.WithField("failures", failures).Fatal("one or more clients failed")
	}
}

func filterClients(clients []topology.ClientEntry, name string) []topology.ClientEntry {
	for _, c := range clients {
		if c.Name == name {
			return []topology.ClientEntry{c}
		}
	}
	return nil
}

func placeClient(client *placement.Client, entry topology.ClientEntry, policy backoff.RetryPolicy) error {
	var result placement.PlacementResult
	err := backoff.Retry(func() error {
		var err error
		result, err = client.PlaceClient(context.Background(), entry)
		return err
	}, policy)
	if err != nil {
		return err
	}

	if !result.Admitted {
		fmt.Printf("%s: not admitted, no server host could meet its latency bound\n", entry.Name)
		return nil
	}
	fmt.Printf("%s: admitted on %s/%s (client %s/%s)\n",
		entry.Name, result.ServerHost, result.ServerVM, result.ClientHost, result.ClientVM)
	return nil
}

func removeClient(client *placement.Client, name string, policy backoff.RetryPolicy) error {
	err := backoff.Retry(func() error {
		return client.RemoveClient(context.Background(), name, "", "")
	}, policy)
	if err != nil {
		return err
	}
	fmt.Printf("%s: removed\n", name)
	return nil
}
