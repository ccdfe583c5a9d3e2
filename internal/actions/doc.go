// Package actions runs the action chains bound to node events.
//
// A chain is a list of steps executed strictly in order. Each step resolves
// its params against the page scopes plus the trigger's auxiliary context,
// may be skipped by its conditions, may wait for its delay, and then performs
// one side effect. Its outcome picks the onSuccess or onError branch, which
// sees the step result under actionResults. Failures stay inside their step.
package actions
