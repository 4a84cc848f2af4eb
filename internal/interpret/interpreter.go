package interpret

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/llm"
	"github.com/ggonzalez94/bridgectl/internal/metrics"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/storage"
)

// SystemInstruction is sent with every remote interpretation request.
var SystemInstruction = buildSystemInstruction()

func buildSystemInstruction() string {
	var sources []string
	for _, c := range registry.ListChains() {
		if c.ID != registry.DestinationChain {
			sources = append(sources, string(c.ID))
		}
	}
	return `You convert cross-chain bridge requests into JSON.
Reply with a single JSON object and nothing else:
{"sourceChain": "<chain id>", "token": "<token symbol>", "amount": "<decimal amount>"}
Supported source chains: ` + strings.Join(sources, ", ") + `.
Use null for any field the user did not state. Never guess.`
}

const cacheKeyPrefix = "interpretation:"

type Options struct {
	// Remote is nil when the remote tier is disabled.
	Remote        llm.Completer
	RemoteTimeout time.Duration
	Cache         storage.KV
	CacheTTL      time.Duration
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

type Interpreter struct {
	remote        llm.Completer
	remoteTimeout time.Duration
	cache         storage.KV
	cacheTTL      time.Duration
	log           zerolog.Logger
	metrics       *metrics.Metrics
}

func New(opts Options) *Interpreter {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	return &Interpreter{
		remote:        opts.Remote,
		remoteTimeout: opts.RemoteTimeout,
		cache:         opts.Cache,
		cacheTTL:      opts.CacheTTL,
		log:           opts.Logger.With().Str("component", "interpreter").Logger(),
		metrics:       opts.Metrics,
	}
}

// Interpret resolves free text through the remote tier, then the local
// parser. When neither yields a complete instruction the error carries
// CodeNeedInfo and the returned value lists the missing fields.
func (i *Interpreter) Interpret(ctx context.Context, text string) (model.Interpretation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Interpretation{MissingFields: []string{FieldSourceChain, FieldToken, FieldAmount}},
			clierr.New(clierr.CodeNeedInfo, "tell me the chain, token and amount to bridge")
	}

	if i.remote != nil {
		if instr, ok := i.fromCache(ctx, text); ok {
			i.metrics.Interpretation(string(model.SourceRemote), "cache_hit")
			return model.Interpretation{Instruction: instr, Source: model.SourceRemote, Cached: true}, nil
		}
		instr, err := i.interpretRemote(ctx, text)
		if err == nil {
			i.metrics.Interpretation(string(model.SourceRemote), "ok")
			i.storeCache(ctx, text, instr)
			return model.Interpretation{Instruction: instr, Source: model.SourceRemote}, nil
		}
		i.metrics.Interpretation(string(model.SourceRemote), "fallthrough")
		i.log.Debug().Err(err).Msg("remote interpretation failed; using local parser")
	}

	instr, missing, ok := ParseLocal(text)
	if ok {
		i.metrics.Interpretation(string(model.SourceLocal), "ok")
		return model.Interpretation{Instruction: instr, Source: model.SourceLocal}, nil
	}
	i.metrics.Interpretation(string(model.SourceLocal), "need_info")
	return model.Interpretation{Instruction: instr, MissingFields: missing},
		clierr.New(clierr.CodeNeedInfo, fmt.Sprintf("could not understand the request; missing %s", strings.Join(missing, ", ")))
}

type remoteAnswer struct {
	SourceChain *string         `json:"sourceChain"`
	Token       *string         `json:"token"`
	Amount      json.RawMessage `json:"amount"`
}

func (i *Interpreter) interpretRemote(ctx context.Context, text string) (model.BridgeInstruction, error) {
	callCtx, cancel := context.WithTimeout(ctx, i.remoteTimeout)
	defer cancel()

	reply, err := i.remote.Complete(callCtx, SystemInstruction, text)
	if err != nil {
		return model.BridgeInstruction{}, err
	}
	raw, ok := ExtractJSONObject(reply)
	if !ok {
		return model.BridgeInstruction{}, fmt.Errorf("no JSON object in model reply")
	}
	var ans remoteAnswer
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return model.BridgeInstruction{}, fmt.Errorf("decode model reply: %w", err)
	}
	if ans.SourceChain == nil || ans.Token == nil {
		return model.BridgeInstruction{}, fmt.Errorf("model reply is missing fields")
	}
	chain, known := registry.CanonicalChain(*ans.SourceChain)
	if !known {
		return model.BridgeInstruction{}, fmt.Errorf("model named unknown chain %q", *ans.SourceChain)
	}
	amount := decodeAmount(ans.Amount)
	token := normalizeToken(*ans.Token)
	if amount == "" || token == "" {
		return model.BridgeInstruction{}, fmt.Errorf("model reply is missing fields")
	}
	if !registry.KnownSymbol(token) {
		return model.BridgeInstruction{}, fmt.Errorf("model named unknown token %q", token)
	}
	return model.BridgeInstruction{
		SourceChain:      string(chain),
		Token:            token,
		Amount:           amount,
		DestinationChain: string(registry.DestinationChain),
	}, nil
}

// decodeAmount accepts a JSON number or a numeric string.
func decodeAmount(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return normalizeAmount(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return normalizeAmount(n.String())
	}
	return ""
}

func cacheKey(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(norm))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (i *Interpreter) fromCache(ctx context.Context, text string) (model.BridgeInstruction, bool) {
	if i.cache == nil {
		return model.BridgeInstruction{}, false
	}
	raw, ok, err := i.cache.Get(ctx, cacheKey(text))
	if err != nil {
		i.log.Warn().Err(err).Msg("interpretation cache read failed")
		return model.BridgeInstruction{}, false
	}
	if !ok {
		return model.BridgeInstruction{}, false
	}
	var instr model.BridgeInstruction
	if err := json.Unmarshal(raw, &instr); err != nil {
		return model.BridgeInstruction{}, false
	}
	if _, known := registry.CanonicalChain(instr.SourceChain); !known {
		return model.BridgeInstruction{}, false
	}
	return instr, true
}

func (i *Interpreter) storeCache(ctx context.Context, text string, instr model.BridgeInstruction) {
	if i.cache == nil {
		return
	}
	buf, err := json.Marshal(instr)
	if err != nil {
		return
	}
	if err := i.cache.Put(ctx, cacheKey(text), buf, i.cacheTTL); err != nil {
		i.log.Warn().Err(err).Msg("interpretation cache write failed")
	}
}
