package whatsflow_test

import (
	"context"
	"fmt"
	"log"

	whatsflow "github.com/casfuk/whatsapp-flow-builder-sub001"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/memory"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/dsl"
)

// ExampleNew runs a flow built in code against in-memory stores.
func ExampleNew() {
	b := dsl.New("welcome")
	b.Add("start").Start().Go("hello")
	b.Add("hello").SendMessage("Hola {{name}}").Go("menu")
	b.Add("menu").Choice("¿Qué prefieres?", dsl.Option("cafe", "Café"), dsl.Option("te", "Té")).
		When("cafe", "coffee").
		When("te", "tea")
	b.Add("coffee").SendMessage("Marchando un {{menu}}")
	b.Add("tea").SendMessage("Té verde para {{name}}")

	flows, err := memory.NewFlowStore(b.MustBuild())
	if err != nil {
		log.Fatal(err)
	}
	eng, err := whatsflow.New(whatsflow.WithFlowStore(flows))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, err := eng.Start(ctx, "welcome", "session-123", map[string]any{"name": "Ana"})
	if err != nil {
		log.Fatal(err)
	}
	printActions(res)

	// Typed answers select options by number or label.
	res, err = eng.Resume(ctx, "session-123", res.Session.CurrentStepID, "1", "")
	if err != nil {
		log.Fatal(err)
	}
	printActions(res)
	fmt.Println("status:", res.Session.Status)
	// Output:
	// send_whatsapp: "Hola Ana"
	// send_whatsapp: "¿Qué prefieres?\n\n1. Café\n2. Té"
	// send_whatsapp: "Marchando un Café"
	// status: completed
}

func printActions(res *whatsflow.Result) {
	for _, a := range res.Actions {
		if p, ok := a.Payload.(domain.SendWhatsApp); ok {
			fmt.Printf("%s: %q\n", a.Kind, p.Text)
		}
	}
}
