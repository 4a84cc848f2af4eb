package interpret

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/storage"
)

type fakeCompleter struct {
	reply string
	err   error
	delay time.Duration
	calls int32
}

func (f *fakeCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestLocalParserBridgeEthFromEthereum(t *testing.T) {
	in := New(Options{Logger: zerolog.Nop()})
	got, err := in.Interpret(context.Background(), "Bridge 0.5 ETH from Ethereum")
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	want := model.BridgeInstruction{
		SourceChain:      "ethereum",
		Token:            "ETH",
		Amount:           "0.5",
		DestinationChain: string(registry.DestinationChain),
	}
	if got.Instruction != want || got.Source != model.SourceLocal {
		t.Fatalf("unexpected interpretation: %+v", got)
	}
}

func TestHelloNeedsMoreInformation(t *testing.T) {
	remote := &fakeCompleter{reply: "Hi there! How can I help you today?"}
	in := New(Options{Remote: remote, Logger: zerolog.Nop()})
	got, err := in.Interpret(context.Background(), "hello")
	if clierr.CodeOf(err) != clierr.CodeNeedInfo {
		t.Fatalf("expected need-info error, got %v", err)
	}
	if !reflect.DeepEqual(got.MissingFields, []string{FieldSourceChain, FieldToken, FieldAmount}) {
		t.Fatalf("unexpected missing fields: %v", got.MissingFields)
	}
	if got.Instruction.SourceChain != "" || got.Instruction.Token != "" {
		t.Fatalf("must not guess an instruction: %+v", got.Instruction)
	}
}

func TestPartialInstructionReportsMissingFields(t *testing.T) {
	in := New(Options{Logger: zerolog.Nop()})
	got, err := in.Interpret(context.Background(), "send 25 usdc")
	if clierr.CodeOf(err) != clierr.CodeNeedInfo {
		t.Fatalf("expected need-info error, got %v", err)
	}
	if !reflect.DeepEqual(got.MissingFields, []string{FieldSourceChain}) {
		t.Fatalf("unexpected missing fields: %v", got.MissingFields)
	}
}

func TestRemoteReplyWrappedInProse(t *testing.T) {
	remote := &fakeCompleter{reply: "Sure! Here you go:\n```json\n{\"sourceChain\": \"Matic\", \"token\": \"usdc\", \"amount\": 10}\n```\nAnything else?"}
	in := New(Options{Remote: remote, Logger: zerolog.Nop()})
	got, err := in.Interpret(context.Background(), "move ten bucks of usdc off polygon")
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if got.Source != model.SourceRemote {
		t.Fatalf("expected remote source, got %s", got.Source)
	}
	if got.Instruction.SourceChain != "polygon" || got.Instruction.Token != "USDC" || got.Instruction.Amount != "10" {
		t.Fatalf("unexpected instruction: %+v", got.Instruction)
	}
}

func TestRemoteFailuresFallThroughToLocal(t *testing.T) {
	cases := map[string]*fakeCompleter{
		"error":         {err: errors.New("connection refused")},
		"truncated":     {reply: `{"sourceChain": "ethereum", "token": "ET`},
		"unknown chain": {reply: `{"sourceChain": "narnia", "token": "ETH", "amount": "1"}`},
		"null field":    {reply: `{"sourceChain": "arbitrum", "token": null, "amount": "1"}`},
		"unknown token": {reply: `{"sourceChain": "arbitrum", "token": "DOGE", "amount": "1"}`},
		"slow":          {reply: `{"sourceChain": "base", "token": "ETH", "amount": "1"}`, delay: time.Second},
	}
	for name, remote := range cases {
		in := New(Options{Remote: remote, RemoteTimeout: 50 * time.Millisecond, Logger: zerolog.Nop()})
		got, err := in.Interpret(context.Background(), "transfer 2 usdt on arbitrum")
		if err != nil {
			t.Fatalf("%s: expected local fallback, got %v", name, err)
		}
		if got.Source != model.SourceLocal || got.Instruction.SourceChain != "arbitrum" || got.Instruction.Token != "USDT" {
			t.Fatalf("%s: unexpected interpretation %+v", name, got)
		}
	}
}

func TestRemoteInterpretationIsCached(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.OpenSQLite(filepath.Join(dir, "bridge.db"), filepath.Join(dir, "bridge.lock"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer kv.Close()

	remote := &fakeCompleter{reply: `{"sourceChain":"optimism","token":"ETH","amount":"0.25"}`}
	in := New(Options{Remote: remote, Cache: kv, Logger: zerolog.Nop()})

	first, err := in.Interpret(context.Background(), "Bridge a quarter ETH off OP")
	if err != nil || first.Cached {
		t.Fatalf("unexpected first interpretation: %+v err=%v", first, err)
	}
	second, err := in.Interpret(context.Background(), "  bridge a quarter eth   off op ")
	if err != nil {
		t.Fatalf("second Interpret failed: %v", err)
	}
	if !second.Cached || second.Instruction != first.Instruction {
		t.Fatalf("expected cached repeat, got %+v", second)
	}
	if remote.calls != 1 {
		t.Fatalf("expected one remote call, got %d", remote.calls)
	}
}

func TestParseLocalIgnoresNumericChains(t *testing.T) {
	for _, text := range []string{"bridge 5 usdc from 137", "bridge 5 usdc in 10 minutes", "send 1 eth on eip155:1"} {
		instr, missing, ok := ParseLocal(text)
		if ok || instr.SourceChain != "" {
			t.Fatalf("%q: expected no source chain, got %+v", text, instr)
		}
		if len(missing) != 1 || missing[0] != FieldSourceChain {
			t.Fatalf("%q: unexpected missing fields %v", text, missing)
		}
	}
}

func TestParseLocalVariants(t *testing.T) {
	cases := []struct {
		text  string
		chain string
		token string
		amt   string
	}{
		{"send .5 ether from eth", "ethereum", "ETH", "0.5"},
		{"I'm in a hurry, transfer 100 USDC on matic please", "polygon", "USDC", "100"},
		{"bridge 3 avax in avalanche", "avalanche", "AVAX", "3"},
		{"Bridge 1.25 WBTC from arbitrum", "arbitrum", "WBTC", "1.25"},
		{"Bridge 10 USDC in 10 minutes from polygon", "polygon", "USDC", "10"},
		{"send 5 USDC on 1 go from arbitrum", "arbitrum", "USDC", "5"},
	}
	for _, tc := range cases {
		instr, missing, ok := ParseLocal(tc.text)
		if !ok {
			t.Fatalf("%q: expected complete parse, missing %v", tc.text, missing)
		}
		if instr.SourceChain != tc.chain || instr.Token != tc.token || instr.Amount != tc.amt {
			t.Fatalf("%q: unexpected instruction %+v", tc.text, instr)
		}
		if instr.DestinationChain != string(registry.DestinationChain) {
			t.Fatalf("%q: destination not normalized: %s", tc.text, instr.DestinationChain)
		}
	}
}

func TestSystemInstructionListsRegistrySourceChains(t *testing.T) {
	line := ""
	for _, l := range strings.Split(SystemInstruction, "\n") {
		if strings.HasPrefix(l, "Supported source chains:") {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("no supported chains line in:\n%s", SystemInstruction)
	}
	for _, c := range registry.ListChains() {
		listed := strings.Contains(line, " "+string(c.ID)+",") || strings.Contains(line, " "+string(c.ID)+".")
		if c.ID == registry.DestinationChain && listed {
			t.Fatalf("destination chain %s offered as a source: %s", c.ID, line)
		}
		if c.ID != registry.DestinationChain && !listed {
			t.Fatalf("source chain %s missing from prompt: %s", c.ID, line)
		}
	}
}
