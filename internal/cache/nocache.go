package cache

import "context"

// NoCache accepts every write and misses every read.
type NoCache struct{}

func (NoCache) Get(context.Context, string) (string, bool) { return "", false }
func (NoCache) Set(context.Context, string, string) bool { return true }
func (NoCache) Update(context.Context, string, string) bool { return true }
func (NoCache) Remove(context.Context, string) bool { return true }
func (NoCache) RemoveStartingWith(context.Context, string) bool { return true }
func (NoCache) Incr(context.Context, string) bool { return true }
func (NoCache) Decr(context.Context, string) bool { return true }
