package remote

import "context"

// waitContext returns a Context that is cancelled when stopCh closes, so
// rate.Limiter.Wait can be interrupted by RemotePair.Stop without an extra
// poll.
func waitContext(stopCh <-chan struct{}) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stopCh
		cancel()
	}()
	return ctx
}
