package research

import (
	"github.com/dd0wney/agentgraph/pkg/health"
)

// newHealthChecker registers the server's checks. The upload store also
// gates readiness: a server that cannot keep uploads should not get traffic.
func (s *Server) newHealthChecker() *health.HealthChecker {
	hc := health.NewHealthChecker()

	if s.store != nil {
		storeCheck := health.StoreCheck(s.store.Backend(), s.store.Ping)
		hc.RegisterCheck("upload_store", storeCheck)
		hc.RegisterReadinessCheck("upload_store", storeCheck)
	}
	if s.hub != nil {
		hc.RegisterCheck("push_channel", health.PushChannelCheck(s.hub.NNGAddr, s.hub.Clients))
	}
	if s.runner != nil {
		hc.RegisterCheck("jobs", health.JobCapacityCheck(s.runner.Active, s.runner.MaxJobs()))
	}
	hc.RegisterCheck("memory", health.MemoryCheck(nil))
	return hc
}
