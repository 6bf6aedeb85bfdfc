// Package app wires the runtime together: settings, logger, component
// registry, authentication client and suite. It hands out quests seeded with
// those process-wide services and runs test bodies against them, one at a
// time or on a bounded worker pool.
package app
