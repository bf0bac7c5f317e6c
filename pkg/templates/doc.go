// Package templates ships the premade starter documents and installs them into
// a ports.TemplateStore. It also holds the Validator applied to user templates
// before they are saved.
package templates
