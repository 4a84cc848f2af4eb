package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/httpx"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

// SettlementWaiter polls a LI.FI style status API for the relay and
// destination phases.
type SettlementWaiter struct {
	client       *httpx.Client
	endpoint     string
	pollInterval time.Duration
}

func NewSettlementWaiter(client *httpx.Client, provider, endpoint string, poll time.Duration) (*SettlementWaiter, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		canonical, ok := registry.StatusEndpoint(provider)
		if !ok {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown settlement provider %q", provider))
		}
		endpoint = canonical
	}
	if !registry.IsAllowedStatusEndpoint(provider, endpoint) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("settlement endpoint %q is not allowed for provider %s", endpoint, provider))
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &SettlementWaiter{client: client, endpoint: endpoint, pollInterval: poll}, nil
}

type settlementStatus struct {
	Status           string `json:"status"`
	Substatus        string `json:"substatus"`
	SubstatusMessage string `json:"substatusMessage"`
	Receiving        struct {
		TxHash string `json:"txHash"`
	} `json:"receiving"`
}

func (w *SettlementWaiter) AwaitPhase(ctx context.Context, tx model.BridgeTransaction, phase Phase) (PhaseResult, error) {
	if phase != PhaseRelay && phase != PhaseDestination {
		return PhaseResult{}, fmt.Errorf("settlement waiter cannot observe phase %s", phase)
	}
	if strings.TrimSpace(tx.SourceTxHash) == "" {
		return PhaseResult{}, fmt.Errorf("no source transaction hash to track")
	}
	statusURL, err := w.statusURL(tx)
	if err != nil {
		return PhaseResult{}, err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		var st settlementStatus
		_, err := httpx.DoBodyJSON(ctx, w.client, http.MethodGet, statusURL, nil, nil, &st)
		switch {
		case err == nil:
			done, result, stErr := evaluateSettlement(phase, st)
			if stErr != nil {
				return PhaseResult{}, stErr
			}
			if done {
				return result, nil
			}
		case clierr.CodeOf(err) == clierr.CodeAuth, clierr.CodeOf(err) == clierr.CodeUnsupported:
			return PhaseResult{}, err
		}
		select {
		case <-ctx.Done():
			return PhaseResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *SettlementWaiter) statusURL(tx model.BridgeTransaction) (string, error) {
	u, err := url.Parse(w.endpoint)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUsage, "parse settlement endpoint", err)
	}
	q := u.Query()
	q.Set("txHash", strings.TrimPrefix(strings.TrimSpace(tx.SourceTxHash), "0x"))
	if desc, err := registry.Chain(registry.ChainID(tx.SourceChain)); err == nil && desc.IsEVM() {
		q.Set("fromChain", strconv.FormatInt(desc.NetworkID, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func evaluateSettlement(phase Phase, st settlementStatus) (bool, PhaseResult, error) {
	status := strings.ToUpper(strings.TrimSpace(st.Status))
	if status == "FAILED" || status == "INVALID" {
		msg := strings.TrimSpace(st.SubstatusMessage)
		if msg == "" {
			msg = strings.TrimSpace(st.Substatus)
		}
		if msg == "" {
			msg = "relay reported failure"
		}
		return false, PhaseResult{}, fmt.Errorf("settlement %s: %s", strings.ToLower(status), msg)
	}
	switch phase {
	case PhaseRelay:
		// The relay has picked the transfer up once it reports any progress.
		return status == "DONE" || (status == "PENDING" && st.Substatus != ""), PhaseResult{}, nil
	default:
		if status != "DONE" {
			return false, PhaseResult{}, nil
		}
		return true, PhaseResult{TxHash: strings.TrimSpace(st.Receiving.TxHash)}, nil
	}
}
