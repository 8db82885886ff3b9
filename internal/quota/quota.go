// Package quota gates generative inference calls behind daily per-model and
// combined request ceilings.
package quota

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/yoockh/yoocare/internal/utils"
)

// DefaultModel is used when a caller does not name one.
const DefaultModel = "gemma-3n-e2b-it"

// DefaultUtilization caps the combined counter at this share of the summed capacities.
const DefaultUtilization = 0.8

// DefaultCapacities are requests per day by model name.
func DefaultCapacities() map[string]int {
	return map[string]int{
		"gemini-2.5-pro":        50,
		"gemini-2.5-flash":      250,
		"gemini-2.5-flash-lite": 1000,
		"gemini-2.0-flash":      200,
		"gemini-2.0-flash-lite": 200,
		"gemma-3n-e2b-it":       14400,
	}
}

// ParseCapacities reads "model=cap,model=cap".
func ParseCapacities(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, utils.E(utils.CodeInvalidArgument, "quota.ParseCapacities", "expected model=capacity, got "+part, nil)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 0 {
			return nil, utils.E(utils.CodeInvalidArgument, "quota.ParseCapacities", "invalid capacity for "+name, err)
		}
		out[strings.TrimSpace(name)] = n
	}
	return out, nil
}

// Store performs the atomic check-and-increment of both counters.
// Reserve returns false without mutating anything when either limit is reached.
type Store interface {
	Reserve(ctx context.Context, model string, modelLimit, totalLimit int) (bool, error)
	Usage(ctx context.Context) (Usage, error)
}

type Usage struct {
	Models map[string]int `json:"models"`
	Total  int            `json:"total"`
}

type Manager struct {
	store      Store
	capacities map[string]int
	totalLimit int
}

// NewManager copies capacities; the combined limit is int(sum * ratio).
func NewManager(store Store, capacities map[string]int, ratio float64) *Manager {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultUtilization
	}
	caps := make(map[string]int, len(capacities))
	sum := 0
	for k, v := range capacities {
		caps[k] = v
		sum += v
	}
	return &Manager{store: store, capacities: caps, totalLimit: int(float64(sum) * ratio)}
}

func (m *Manager) Capacity(model string) int { return m.capacities[model] }
func (m *Manager) TotalLimit() int           { return m.totalLimit }

// Models lists configured model names, sorted.
func (m *Manager) Models() []string {
	out := make([]string, 0, len(m.capacities))
	for k := range m.capacities {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reserve accounts one request against model. Unknown models have zero capacity.
func (m *Manager) Reserve(ctx context.Context, model string) error {
	const op = "QuotaManager.Reserve"

	ok, err := m.store.Reserve(ctx, model, m.capacities[model], m.totalLimit)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "quota store unavailable", err)
	}
	if !ok {
		return utils.E(utils.CodeQuotaExceeded, op, "daily inference quota exhausted for "+model, nil)
	}
	return nil
}

func (m *Manager) Usage(ctx context.Context) (Usage, error) {
	const op = "QuotaManager.Usage"

	u, err := m.store.Usage(ctx)
	if err != nil {
		return Usage{}, utils.E(utils.CodeUnavailable, op, "quota store unavailable", err)
	}
	return u, nil
}
