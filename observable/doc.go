// Package observable lets arbitrary objects expose named properties whose
// value changes can be watched by callback observers, without the observed
// object knowing about its observers.
//
// ARCHITECTURE:
//
// Four pieces, leaves first:
//
//   - Descriptor: per-class metadata binding a property name to its getter
//     and optional setter. Built explicitly with Register at class-definition
//     time; immutable afterwards. A property absent from the descriptor is a
//     plain attribute and cannot be subscribed to.
//   - Registry: process-wide table mapping (instance identity, property,
//     phase) to an ordered observer list. Identity tokens are assigned lazily
//     on first subscription and never pin the instance alive; observers are
//     held strongly until unsubscribed.
//   - Dispatcher: runs the observers for one (instance, property, phase) in
//     strict subscription order, guarded against reentrant writes.
//   - Scoped update / explicit notify: the path for computed properties
//     without a setter.
//
// Write path:
//
//	Set → guard mark → before-phase dispatch → setter → after-phase dispatch → guard release
//
// Non-setter path: either Update (mutate backing state in a scope, one
// after-phase dispatch on clean exit, none on error) or Notify (explicit
// value, either phase).
//
// DETERMINISM:
//
// Observers run synchronously, one at a time, in subscription order. The
// first observer error aborts the rest of the cycle and propagates to the
// writer; a before-phase error suppresses the mutation. For one (instance,
// property) pair: before-phase observers strictly precede the mutation,
// which strictly precedes after-phase observers. No ordering is guaranteed
// between unrelated properties.
//
// The runtime is caller-synchronized: no internal parallelism, no
// cross-goroutine coordination. Telemetry events are stamped with a
// monotonic logical clock, never wall-clock order.
package observable
