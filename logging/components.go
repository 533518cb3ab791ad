package logging

// 日志组件名，作为 component 属性输出。
const (
	ComponentStartup = "startup"
	ComponentRender  = "render"
	ComponentCaption = "caption"
	ComponentServer  = "server"
	ComponentExport  = "export"
	ComponentEditor  = "editor"
	ComponentRecipe  = "recipe"
)
