// Package stepio is a step-based I/O engine for named, typed, shaped
// arrays.
//
// Writers and readers are opened through a Session and exchange data in
// steps:
//
//	s := stepio.NewSession(stepio.WithCatalog(cat))
//	w, _ := s.Open(ctx, "sim", stepio.ModeWrite, stepio.WithTransports(t))
//	temp, _ := stepio.DefineVariable[float64](w, "temp", []uint64{100}, nil, nil)
//	for i := 0; i < steps; i++ {
//		w.BeginStep(ctx, stepio.StepNext, -1)
//		stepio.Put(w, temp, values, stepio.Deferred)
//		w.EndStep(ctx)
//	}
//	w.Close(ctx, stepio.AllTransports)
//
// Puts and gets are either Sync or Deferred. Deferred requests are queued
// and materialised by PerformPuts, PerformGets or EndStep, ordered by
// variable definition order and then by issue order. Every put becomes a
// block record written to all attached transports; the block's metadata,
// including one locator per transport, is published to the catalog when
// the step ends. With several writers (WithRank) a step becomes visible to
// readers only after every writer ended it.
package stepio
