// Package sceneflow is the public facade over the flow editor, flow
// persistence and the flow runtime. It opens the configured asset store and
// hands out editors and play sessions wired to it, so front ends never
// import internal packages.
package sceneflow
