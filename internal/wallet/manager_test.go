package wallet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/wallet/signer"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func testSigner(t *testing.T) signer.Signer {
	t.Helper()
	s, err := signer.NewLocalSigner(signer.LocalSignerConfig{PrivateKeyHex: testPrivateKey})
	if err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
	return s
}

func TestConnectAddsUnknownNetworkThenSwitches(t *testing.T) {
	var prompts []Request
	approve := func(_ context.Context, req Request) bool {
		prompts = append(prompts, req)
		return true
	}
	provider := NewLocalProvider(testSigner(t), approve, registry.Ethereum)
	m := NewManager(provider, zerolog.Nop())

	s, err := m.Connect(context.Background(), "matic")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if s.ChainID != registry.Polygon || s.NetworkID != 137 {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Address != provider.Signer().Address().Hex() {
		t.Fatalf("unexpected address: %s", s.Address)
	}
	want := []RequestKind{RequestAccounts, RequestAddChain, RequestSwitch}
	if len(prompts) != len(want) {
		t.Fatalf("unexpected prompts: %+v", prompts)
	}
	for i, kind := range want {
		if prompts[i].Kind != kind {
			t.Fatalf("prompt %d = %s, want %s", i, prompts[i].Kind, kind)
		}
	}
	if current, ok := m.CurrentSession(); !ok || current.ChainID != registry.Polygon {
		t.Fatalf("expected stored polygon session, got %+v ok=%v", current, ok)
	}
}

func TestConnectOnCurrentChainSkipsSwitch(t *testing.T) {
	var switches int32
	approve := func(_ context.Context, req Request) bool {
		if req.Kind == RequestSwitch {
			atomic.AddInt32(&switches, 1)
		}
		return true
	}
	m := NewManager(NewLocalProvider(testSigner(t), approve, registry.Ethereum), zerolog.Nop())
	if _, err := m.Connect(context.Background(), "ethereum"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if switches != 0 {
		t.Fatalf("expected no switch prompt, got %d", switches)
	}
}

func TestConnectRejectedLeavesNoSession(t *testing.T) {
	m := NewManager(NewLocalProvider(testSigner(t), DenyAll), zerolog.Nop())
	_, err := m.Connect(context.Background(), "ethereum")
	if clierr.CodeOf(err) != clierr.CodeRejected {
		t.Fatalf("expected rejected code, got %v", err)
	}
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if _, ok := m.CurrentSession(); ok {
		t.Fatal("rejected connect must not create a session")
	}
}

func TestConnectWithoutProvider(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())
	if _, err := m.Connect(context.Background(), "ethereum"); clierr.CodeOf(err) != clierr.CodeNoProvider {
		t.Fatalf("expected no provider code, got %v", err)
	}
	m = NewManager(NewLocalProvider(nil, AutoApprove), zerolog.Nop())
	if _, err := m.Connect(context.Background(), "ethereum"); clierr.CodeOf(err) != clierr.CodeNoProvider {
		t.Fatalf("expected no provider code for keyless wallet, got %v", err)
	}
}

func TestConnectUnsupportedChain(t *testing.T) {
	m := NewManager(NewLocalProvider(testSigner(t), AutoApprove), zerolog.Nop())
	if _, err := m.Connect(context.Background(), "narnia"); clierr.CodeOf(err) != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported code, got %v", err)
	}
	if _, err := m.Connect(context.Background(), "solana"); clierr.CodeOf(err) != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported code for non-EVM chain, got %v", err)
	}
}

func TestSwitchChainWhileDisconnected(t *testing.T) {
	m := NewManager(NewLocalProvider(testSigner(t), AutoApprove), zerolog.Nop())
	_, err := m.SwitchChain(context.Background(), "polygon")
	if clierr.CodeOf(err) != clierr.CodeSession {
		t.Fatalf("expected session error, got %v", err)
	}
}

func TestSwitchChainRejected(t *testing.T) {
	allowSwitch := false
	approve := func(_ context.Context, req Request) bool {
		return req.Kind != RequestSwitch || allowSwitch
	}
	m := NewManager(NewLocalProvider(testSigner(t), approve, registry.Ethereum, registry.Arbitrum), zerolog.Nop())
	if _, err := m.Connect(context.Background(), "ethereum"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	_, err := m.SwitchChain(context.Background(), "arb")
	if clierr.CodeOf(err) != clierr.CodeRejected {
		t.Fatalf("expected rejected switch, got %v", err)
	}
	if s, _ := m.CurrentSession(); s.ChainID != registry.Ethereum {
		t.Fatalf("rejected switch must keep the previous chain, got %s", s.ChainID)
	}
	allowSwitch = true
	s, err := m.SwitchChain(context.Background(), "arb")
	if err != nil || s.ChainID != registry.Arbitrum {
		t.Fatalf("expected arbitrum session, got %+v err=%v", s, err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	m := NewManager(NewLocalProvider(testSigner(t), AutoApprove), zerolog.Nop())
	if _, err := m.Connect(context.Background(), "ethereum"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.Disconnect()
	m.Disconnect()
	if _, ok := m.CurrentSession(); ok {
		t.Fatal("expected no session after disconnect")
	}
}

func TestConnectTimesOutWaitingForUser(t *testing.T) {
	approve := func(ctx context.Context, _ Request) bool {
		<-ctx.Done()
		return false
	}
	m := NewManager(NewLocalProvider(testSigner(t), approve), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Connect(ctx, "ethereum"); clierr.CodeOf(err) != clierr.CodeTimeout {
		t.Fatalf("expected timeout code, got %v", err)
	}
}

// foreignAccountProvider reports an account its signer does not hold.
type foreignAccountProvider struct {
	*LocalProvider
	account string
}

func (p foreignAccountProvider) RequestAccounts(context.Context) ([]string, error) {
	return []string{p.account}, nil
}

func TestConnectRequiresSignerToControlAccount(t *testing.T) {
	provider := foreignAccountProvider{
		LocalProvider: NewLocalProvider(testSigner(t), AutoApprove),
		account:       "0x1111111111111111111111111111111111111111",
	}
	m := NewManager(provider, zerolog.Nop())
	_, err := m.Connect(context.Background(), "ethereum")
	if clierr.CodeOf(err) != clierr.CodeNoProvider {
		t.Fatalf("expected no provider code, got %v", err)
	}
	if _, ok := m.CurrentSession(); ok {
		t.Fatal("unverified account must not create a session")
	}
}

func TestConnectedSessionSignerRecoversToAddress(t *testing.T) {
	m := NewManager(NewLocalProvider(testSigner(t), AutoApprove), zerolog.Nop())
	s, err := m.Connect(context.Background(), "ethereum")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	msg := []byte("bridge 5 USDC")
	sig, err := s.Signer.SignMessage(msg)
	if err != nil {
		t.Fatalf("SignMessage failed: %v", err)
	}
	got, err := signer.RecoverMessageSigner(msg, sig)
	if err != nil || got.Hex() != s.Address {
		t.Fatalf("recovered %s err=%v, want %s", got.Hex(), err, s.Address)
	}
}
