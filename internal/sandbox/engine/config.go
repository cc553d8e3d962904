package engine

// Config controls sandbox engine behavior.
type Config struct {
	CgroupRoot           string `yaml:"cgroup_root"`
	HelperPath           string `yaml:"helper_path"`
	StdoutStderrMaxBytes int64  `yaml:"stdout_stderr_max_bytes"`
	EnableCgroup         bool   `yaml:"enable_cgroup"`
	EnableNamespaces     bool   `yaml:"enable_namespaces"`
}
