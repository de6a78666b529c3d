package config

// GlobalConfigTemplate is the default template for
// ~/.config/diffharness/config.yaml. It includes comments explaining each
// option.
const GlobalConfigTemplate = `# diffharness global configuration
# Location: ~/.config/diffharness/config.yaml

# Schema version (required)
version: 1

harness:
  # Harness binary used for "local" targets (default: this executable)
  # path: ~/bin/diffharness

  # Per-execution worker timeout
  timeout: 1m

  # Maximum concurrent workers (0 = one per config)
  parallelism: 0

# Drivers execute programs for one implementation. A "command" driver
# runs an external program as "<command> list" and "<command> run <backend>:<device>".
# drivers:
#   wgpu:
#     type: command
#     command: [~/bin/wgpu-runner]
#     env:
#       RUST_LOG: ${RUST_LOG:-warn}
#   dawn:
#     command: [~/bin/dawn-runner]

# Reference compiler validation service (host:port)
# validator:
#   address: validator.local:9123

# Reconditioning command: program on stdin, rewritten program on stdout
# reconditioner:
#   command: [wgsl-recondition]

# Run history database (default: ~/.local/share/diffharness/state.db)
# state:
#   path: ~/.local/share/diffharness/state.db

# Default targets for "diffharness test" ("<configs>@<harness>")
# targets:
#   - "@local"
#   - "dawn:dx12:0@gpu-box:9000"
`

// ProjectConfigTemplate is the default template for .diffharness.yaml.
// It includes commented examples for all configuration options.
const ProjectConfigTemplate = `# diffharness project configuration
# Location: .diffharness.yaml (shader corpus directory)

# Schema version (required)
version: 1

# Configurations to run when -c is not given (default: host defaults)
# configs:
#   - wgpu:vulkan:0
#   - dawn:vulkan:0

# Targets for "diffharness test", overriding the global list
# targets:
#   - "@local"

# Execution overrides (optional)
# timeout: 30s
# parallelism: 4
`

// ProjectConfigMinimalTemplate is a minimal template without comments.
const ProjectConfigMinimalTemplate = `version: 1
`
