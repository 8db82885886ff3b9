package services

import (
	"context"

	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/providers/llm"
	"github.com/yoockh/yoocare/internal/retry"
	"github.com/yoockh/yoocare/internal/utils"
)

// QuotaGate admits or rejects one inference request for a model.
type QuotaGate interface {
	Reserve(ctx context.Context, model string) error
}

// inference reserves quota before every generative call. A rejected
// reservation never reaches the backend.
type inference struct {
	llm     llm.Provider
	quota   QuotaGate
	retry   retry.Policy
	metrics *metrics.Metrics
}

func (in inference) complete(ctx context.Context, op, model, prompt string) (string, error) {
	if in.llm == nil || in.quota == nil {
		return "", utils.E(utils.CodeInternal, op, "inference backend is not configured", nil)
	}

	if err := in.quota.Reserve(ctx, model); err != nil {
		if utils.IsCode(err, utils.CodeQuotaExceeded) {
			in.metrics.RecordQuotaRejection(model)
		}
		return "", err
	}

	out, err := retry.DoValue(ctx, in.retry, func() (string, error) {
		return in.llm.Complete(ctx, prompt, model)
	})
	in.metrics.RecordInference(model, err)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "inference backend unavailable", err)
	}
	return out, nil
}

func metricsOrDefault(m *metrics.Metrics) *metrics.Metrics {
	if m == nil {
		return metrics.Default
	}
	return m
}
