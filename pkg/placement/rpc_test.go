package placement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/yarpc"
	"go.uber.org/yarpc/api/transport"
	"go.uber.org/yarpc/transport/http"

	"github.com/uber/workloadcompactor/pkg/placement"
	"github.com/uber/workloadcompactor/pkg/topology"
)

func TestRegisterServiceHandlerRegistersEveryProcedure(t *testing.T) {
	p := placement.NewPlacer(nil, placement.PlacerConfig{
		Topology: &topology.Config{},
	})

	ht := http.NewTransport()
	dispatcher := yarpc.NewDispatcher(yarpc.Config{
		Name: "placementcontroller-test",
		Inbounds: []transport.Inbound{
			ht.NewInbound(":0"),
		},
	})
	placement.RegisterServiceHandler(dispatcher, p)

	names := map[string]bool{}
	for _, proc := range dispatcher.Router().Procedures() {
		names[proc.Name] = true
	}

	for _, want := range []string{
		placement.ServiceName + ".PlaceClient",
		placement.ServiceName + ".RemoveClient",
	} {
		assert.True(t, names[want], "missing procedure %q", want)
	}
}
