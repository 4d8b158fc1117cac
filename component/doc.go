// Package component defines the core interfaces for lifecycle-managed
// services in streamkit.
//
// Components represent services that require startup, shutdown, and
// health monitoring. The Registry starts them in registration order,
// stops them in reverse order, and aggregates their health.
//
// # Interfaces
//
//   - Component: core lifecycle interface (Name/Start/Stop/Health)
//   - Describable: self-reported startup summary
//   - RouteProvider: HTTP route reporting for server components
package component
