// Package workqueue dispatches items to a fixed pool of workers through a
// bounded buffer.
//
// Publish blocks while the buffer is full. Stop stops intake and waits for
// every item already published to be handled. A handler error or panic is
// confined to its item: it is logged, counted and passed to the OnError
// callback, and the worker moves on.
//
//	q, _ := workqueue.New(func(ctx context.Context, path string) error {
//		return transcribe(ctx, path)
//	}, workqueue.WithBufferSize(32))
//	_ = q.Start(4)
//	_ = q.Publish(ctx, "meeting.mp4")
//	_ = q.Stop(ctx)
package workqueue
