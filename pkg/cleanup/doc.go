// Package cleanup implements the two recurring maintenance passes: a
// stale-running sweep that closes jobs abandoned by dead workers, and a
// three-pass retention-based deletion that prunes old closed jobs in
// small batches. The stale phase is grounded on the teacher's
// ReleaseStaleLocks stale-detection query, generalized from a single
// bulk UPDATE into the spec's explicit per-job cursor so each stale job
// is closed through manager.Manager.Close (and so gets the retry/cascade
// treatment a bulk UPDATE could not give it).
package cleanup
