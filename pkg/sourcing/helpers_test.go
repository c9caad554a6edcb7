package sourcing

import (
	"context"

	"github.com/randalmurphal/procura/pkg/llm"
	"github.com/randalmurphal/procura/pkg/pipeline"
)

// fakeLLM is a scripted Generator for stage tests.
type fakeLLM struct {
	content string
	err     error
	calls   int
	// lastMessages captures the most recent request for assertions.
	lastMessages []llm.Message
}

func (f *fakeLLM) Generate(_ context.Context, messages []llm.Message, _ llm.GenerationConfig, _ ...string) (*llm.Response, error) {
	f.calls++
	f.lastMessages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content, Model: "fake", FinishReason: "stop"}, nil
}

func testCtx() pipeline.Context {
	return pipeline.NewContext(context.Background())
}

func seededStore() *MemorySupplierStore {
	store := NewMemorySupplierStore()
	store.AddSupplier(Supplier{
		ID: "sup-1", Name: "Apex Components", Country: "USA", Region: "north america",
		Categories:     []string{"electronics", "pcb"},
		Certifications: []string{"ISO 9001", "ITAR Registered"},
		Rating:         4.6, LeadTimeDays: 14,
	})
	store.AddSupplier(Supplier{
		ID: "sup-2", Name: "Borealis Machining", Country: "Canada", Region: "north america",
		Categories:     []string{"machining"},
		Certifications: []string{"ISO 9001"},
		Rating:         4.1, LeadTimeDays: 35,
	})
	store.AddSupplier(Supplier{
		ID: "sup-3", Name: "Cheapo Parts", Country: "Unknown", Region: "asia",
		Categories: []string{"electronics"},
		Rating:     1.8, LeadTimeDays: 90,
	})
	return store
}

func testDeps(gen Generator, store SupplierStore) Deps {
	cfg := DefaultConfig()
	cfg.Sample = func() bool { return false }
	return Deps{LLM: gen, Suppliers: store, Config: cfg}
}

func userTurn(text string) State {
	return NewState("sess-test").AppendMessage(llm.RoleUser, text)
}
