package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/yoockh/yoointerview/internal/models"
)

// Router picks a backend by plan tier. Paid plans use Pro when configured.
type Router struct {
	Free Provider
	Pro  Provider
}

func (r *Router) pick(plan string) Provider {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case models.PlanPro, "premium", "enterprise":
		if r.Pro != nil {
			return r.Pro
		}
	}
	return r.Free
}

func (r *Router) Generate(ctx context.Context, req Request) (Response, error) {
	p := r.pick(req.Plan)
	if p == nil {
		return Response{}, errors.New("llm router: no provider configured")
	}
	return p.Generate(ctx, req)
}

func (r *Router) Close() error {
	var errs []error
	if r.Free != nil {
		errs = append(errs, r.Free.Close())
	}
	if r.Pro != nil && r.Pro != r.Free {
		errs = append(errs, r.Pro.Close())
	}
	return errors.Join(errs...)
}
