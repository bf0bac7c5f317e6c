/*
Package ports defines the driven ports (interfaces) of the mjtree engine.

These interfaces decouple the core from external implementations, allowing the
engine to work with various template stores and render services.

# Key Interfaces

  - TemplateStore: Persists named markup documents (memory, file, Redis).
  - Watchable: Optional TemplateStore capability reporting external changes.
  - Renderer: Converts markup to final HTML through an external service.
  - DistributedLocker: Serializes read-modify-write cycles across replicas.

RunTemplateStoreContract is a reusable test suite every TemplateStore
implementation must pass.
*/
package ports
