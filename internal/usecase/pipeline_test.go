package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"HotspotLite/internal/domain"
)

func TestPipelineProcess(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	clock := &fixedClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	rank := 5
	p := NewPipeline(PipelineDeps{
		Articles:         repo,
		Events:           repo,
		Now:              clock.Now,
		NewID:            seqIDs(),
		ClusterLimit:     200,
		ClusterThreshold: 0.6,
	})

	batches := []domain.Batch{
		{SourceID: "tophub", Kind: "tophub", Candidates: []domain.Candidate{
			{Title: "A市发生3.2级地震", URL: "https://t.example.com/1", SourceID: "tophub", SourceType: domain.SourceTypeD, HeatRank: &rank},
		}},
		{SourceID: "gov", Kind: "rss", Candidates: []domain.Candidate{
			{Title: "A市发生地震，震级3.2级", URL: "https://gov.example.com/2", SourceID: "gov", SourceType: domain.SourceTypeA},
			{Title: "A市发生3.2级地震", URL: "https://gov.example.com/3", SourceID: "gov", SourceType: domain.SourceTypeA},
		}},
		{SourceID: "broken", Kind: "html", Err: errors.New("timeout")},
	}

	res, err := p.Process(context.Background(), batches)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if res.Upsert.Inserted != 3 || res.Scored != 3 {
		t.Fatalf("unexpected run result: %+v", res)
	}
	if len(res.Sources) != 3 || res.Sources[2].Err == nil {
		t.Fatalf("source outcomes should include the failed fetch: %+v", res.Sources)
	}

	tophub, _ := repo.byURL("https://t.example.com/1")
	if tophub.Credibility != 1 {
		t.Fatalf("title seen on a high-trust source should be anchored")
	}
	wantScore := 0.35*1 + 0.30*1 + 0.20*(1-5.0/50)
	if math.Abs(tophub.Score-wantScore) > 1e-9 {
		t.Fatalf("expected score %v, got %v", wantScore, tophub.Score)
	}

	gov, _ := repo.byURL("https://gov.example.com/2")
	if gov.Credibility != 1 {
		t.Fatalf("high-trust article anchors itself")
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected all three reports in one event, got %d events", len(repo.events))
	}
	for _, e := range repo.events {
		if len(e.MemberIDs) != 3 || math.Abs(e.Score-0.6) > 1e-9 {
			t.Fatalf("unexpected event: %+v", e)
		}
	}
}

func TestPipelineUnanchoredCredibility(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	clock := &fixedClock{now: time.Now()}
	p := NewPipeline(PipelineDeps{Articles: repo, Events: repo, Now: clock.Now})

	_, err := p.Process(context.Background(), []domain.Batch{{SourceID: "d", Candidates: []domain.Candidate{
		{Title: "热搜话题", URL: "https://d.example.com/1", SourceType: domain.SourceTypeD},
	}}})
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	a, _ := repo.byURL("https://d.example.com/1")
	if a.Credibility != 0 {
		t.Fatalf("persisted credibility should be 0 when unanchored, got %v", a.Credibility)
	}
	if math.Abs(a.Score-(0.35*0.4+0.30)) > 1e-9 {
		t.Fatalf("unexpected score %v", a.Score)
	}
}

func TestPipelineRunUsesSource(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	src := stubSource{batches: []domain.Batch{{SourceID: "rss", Candidates: []domain.Candidate{{Title: "t", URL: "https://r.example.com/1"}}}}}
	p := NewPipeline(PipelineDeps{Source: src, Articles: repo, Events: repo})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Upsert.Inserted != 1 || res.Events != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestStatusBoardApply(t *testing.T) {
	t.Parallel()

	board := NewStatusBoard()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	board.Apply(RunResult{Sources: []SourceRun{{ID: "b", Kind: "rss", Count: 4, At: t0}, {ID: "a", Kind: "html", Count: 2, At: t0}}})
	board.Apply(RunResult{Sources: []SourceRun{{ID: "b", Kind: "rss", Err: errors.New("dns"), At: t0.Add(time.Minute)}}})

	snap := board.Snapshot()
	if len(snap) != 2 || snap[0].ID != "a" || snap[1].ID != "b" {
		t.Fatalf("unexpected snapshot order: %+v", snap)
	}
	b := snap[1]
	if b.LastError != "dns" || b.LastCount != 4 || b.LastSuccessAt == nil || !b.LastSuccessAt.Equal(t0) {
		t.Fatalf("failure should keep previous success data: %+v", b)
	}
	if _, ok := board.LastRun(); !ok {
		t.Fatalf("expected last run to be recorded")
	}
}

type gatedSource struct {
	calls   atomic.Int32
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gatedSource) FetchAll(context.Context) []domain.Batch {
	g.calls.Add(1)
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return nil
}

func TestSchedulerTriggerSingleFlight(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	src := &gatedSource{release: make(chan struct{}), entered: make(chan struct{})}
	s := NewScheduler(nil, NewPipeline(PipelineDeps{Source: src, Articles: repo, Events: repo}), nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Trigger(context.Background())
	}()
	<-src.entered

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Trigger(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Fatalf("overlapping triggers should share one run, got %d", n)
	}
}

func TestSchedulerReclusterWaitsForRun(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	src := &gatedSource{release: make(chan struct{}), entered: make(chan struct{})}
	s := NewScheduler(nil, NewPipeline(PipelineDeps{Source: src, Articles: repo, Events: repo}), nil, nil)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_, _ = s.Trigger(context.Background())
	}()
	<-src.entered

	reclusterDone := make(chan error, 1)
	go func() {
		_, err := s.Recluster(context.Background())
		reclusterDone <- err
	}()

	select {
	case <-reclusterDone:
		t.Fatalf("recluster finished while a run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(src.release)
	<-runDone
	select {
	case err := <-reclusterDone:
		if err != nil {
			t.Fatalf("Recluster error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("recluster did not resume after the run finished")
	}
}

func TestSchedulerIngestWaitsForRun(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	src := &gatedSource{release: make(chan struct{}), entered: make(chan struct{})}
	s := NewScheduler(nil, NewPipeline(PipelineDeps{Source: src, Articles: repo, Events: repo}), nil, nil)

	go func() { _, _ = s.Trigger(context.Background()) }()
	<-src.entered

	ingestDone := make(chan RunResult, 1)
	go func() {
		res, _ := s.Ingest(context.Background(), domain.Batch{SourceID: "file", Candidates: []domain.Candidate{{Title: "t", URL: "https://f.example.com/1"}}})
		ingestDone <- res
	}()

	select {
	case <-ingestDone:
		t.Fatalf("ingest finished while a run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(src.release)
	select {
	case res := <-ingestDone:
		if res.Upsert.Inserted != 1 {
			t.Fatalf("expected 1 insert, got %+v", res.Upsert)
		}
	case <-time.After(time.Second):
		t.Fatalf("ingest did not resume after the run finished")
	}
}

func TestSchedulerStartWithoutDriver(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if s.Board() == nil {
		t.Fatalf("board should default to an empty one")
	}
}
