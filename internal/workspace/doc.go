// Package workspace provides the scoped staging area of a single run.
//
// A Workspace is created with Acquire and destroyed with Release. Callers
// defer Release immediately after a successful Acquire so that the area
// is removed on every exit path:
//
//	ws, err := workspace.Acquire(baseDir, runID)
//	if err != nil {
//	    return err
//	}
//	defer ws.Release()
//
// Each workspace lives in its own uniquely named directory, so concurrent
// runs never see each other's files. The on-disk layout is internal and
// must not be relied on by callers.
package workspace
