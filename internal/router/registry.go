package router

import "github.com/gin-gonic/gin"

// Module is a feature area that mounts its own routes on a shared group.
type Module interface {
	Register(rg *gin.RouterGroup)
}

// Registry mounts feature modules under one base path so startup deals with
// whole features, not individual routes.
type Registry struct {
	engine *gin.Engine
	base   *gin.RouterGroup
	mods   []Module
}

func NewRegistry(engine *gin.Engine, basePath string) *Registry {
	return &Registry{engine: engine, base: engine.Group(basePath)}
}

// Use attaches middleware to the base group. Call before Wire so mounted
// routes pass through it.
func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.base.Use(mw...)
}

func (r *Registry) Mount(mods ...Module) {
	r.mods = append(r.mods, mods...)
}

// Wire registers the routes of every mounted module.
func (r *Registry) Wire() {
	for _, m := range r.mods {
		m.Register(r.base)
	}
}
