package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
)

// Persister stores one finished interview.
type Persister interface {
	Persist(ctx context.Context, r models.InterviewReport) error
}

// ReportWorkerPool drains the report stream through a consumer group. A
// report is acknowledged only after it was persisted, so failed entries stay
// pending and are retried by the same consumer on its next start.
type ReportWorkerPool struct {
	Redis      *redis.Client
	Reports    Persister
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
	Block          time.Duration
}

func (p *ReportWorkerPool) init() error {
	if p.Redis == nil || p.Reports == nil {
		return errors.New("ReportWorkerPool missing dependency: Redis/Reports must be set")
	}
	if p.Stream == "" {
		p.Stream = services.ReportStream
	}
	if p.Group == "" {
		p.Group = "report-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Block <= 0 {
		p.Block = 5 * time.Second
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	return nil
}

// Run blocks until ctx is cancelled.
func (p *ReportWorkerPool) Run(ctx context.Context) error {
	if err := p.init(); err != nil {
		return err
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		g.Go(func() error {
			p.runConsumer(ctx, consumer)
			return nil
		})
	}
	return g.Wait()
}

func (p *ReportWorkerPool) runConsumer(ctx context.Context, consumer string) {
	// "0" replays this consumer's pending entries, ">" reads new ones.
	cursor := "0"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, cursor},
			Count:    10,
			Block:    p.Block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("report stream read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				if p.handleMsg(ctx, msg) {
					_ = p.Redis.XAck(context.WithoutCancel(ctx), p.Stream, p.Group, msg.ID).Err()
				}
			}
		}
		cursor = ">"
	}
}

// handleMsg reports whether msg can be acknowledged.
func (p *ReportWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) bool {
	log := p.Logger.WithField("redis_id", msg.ID)

	report, err := services.DecodeReport(msg.Values)
	if err != nil {
		log.WithError(err).Error("dropping undecodable report")
		return true
	}
	log = log.WithFields(logrus.Fields{"session_id": report.SessionID, "user_id": report.UserID})

	if err := p.Reports.Persist(ctx, report); err != nil {
		log.WithError(err).Error("report persist failed")
		return false
	}
	log.WithField("messages", len(report.Messages)).Info("report persisted")
	return true
}
