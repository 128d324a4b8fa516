package router

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/logger"
	"github.com/kailas-cloud/talkdb/internal/usecase/sqlengine"
)

// Engine executes a query along one route.
type Engine interface {
	Query(ctx context.Context, query string) (answer.Answer, error)
}

type vectorEngine struct {
	factory RetrieverFactory
	fuser   Fuser
	synth   Synthesizer
	sources []source.Source
	hybrid  bool
	topK    int
}

func (e *vectorEngine) Query(ctx context.Context, query string) (answer.Answer, error) {
	results, err := e.retrieve(ctx, query)
	if err != nil {
		return answer.Answer{}, err
	}
	return e.synth.FromResults(ctx, query, results)
}

func (e *vectorEngine) retrieve(ctx context.Context, query string) ([]retrieval.Result, error) {
	retrievers := e.factory.Build(e.sources, e.hybrid)
	out, err := e.fuser.Retrieve(ctx, query, retrievers, retrieval.ModeFor(e.hybrid), e.topK)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}

type sqlEngine struct {
	db    SQLEngine
	synth Synthesizer
}

func (e *sqlEngine) Query(ctx context.Context, query string) (answer.Answer, error) {
	res, err := e.db.Ask(ctx, query)
	if err != nil {
		return answer.Answer{}, err
	}
	return e.synth.FromTable(ctx, query, e.db.Artifact(res))
}

type kgEngine struct {
	graph Graph
}

func (e *kgEngine) Query(ctx context.Context, query string) (answer.Answer, error) {
	return e.graph.Query(ctx, query)
}

// joinEngine runs SQL and document retrieval side by side. The SQL outcome
// alone decides the answer shape: rows anchor the answer with documents as
// support, anything else falls back to the document answer.
type joinEngine struct {
	db     SQLEngine
	vector *vectorEngine
	synth  Synthesizer
	logger *zap.Logger
}

func (e *joinEngine) Query(ctx context.Context, query string) (answer.Answer, error) {
	var (
		sqlRes  sqlengine.Result
		sqlErr  error
		docs    []retrieval.Result
		docsErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		sqlRes, sqlErr = e.db.Ask(ctx, query)
		return nil
	})
	g.Go(func() error {
		docs, docsErr = e.vector.retrieve(ctx, query)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return answer.Answer{}, err
	}

	log := logger.FromContext(ctx, e.logger)
	if sqlErr == nil && !sqlRes.Table.Empty() {
		if docsErr != nil {
			log.Warn("Document retrieval failed, answering from SQL only", zap.Error(docsErr))
			docs = nil
		}
		return e.synth.Join(ctx, query, e.db.Artifact(sqlRes), docs)
	}

	reason := "empty result"
	if sqlErr != nil {
		reason = sqlErr.Error()
	}
	log.Info("SQL path yielded no usable result, answering from documents",
		zap.String("db", e.db.Name()), zap.String("reason", reason))

	if docsErr != nil {
		if sqlErr != nil {
			return answer.Answer{}, errors.Join(docsErr, sqlErr)
		}
		return answer.Answer{}, docsErr
	}
	return e.synth.FromResults(ctx, query, docs)
}
