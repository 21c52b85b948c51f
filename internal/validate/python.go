package validate

import "regexp"

var pyExts = []string{".py", ".pyw"}

func pythonRules() []Rule {
	return []Rule{
		{
			ID:         "dynamic-execution",
			Message:    "eval() executes arbitrary expressions",
			Extensions: pyExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`(?:^|[^\w.])eval\s*\(`),
		},
		{
			ID:         "dynamic-execution",
			Message:    "exec() executes arbitrary code",
			Extensions: pyExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`(?:^|[^\w.])exec\s*\(`),
		},
		{
			ID:         "shell-escape",
			Message:    "OS command execution",
			Extensions: pyExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`\bos\.(?:system|popen|exec[lv]p?e?|spawn[lv]p?e?)\s*\(`),
		},
		{
			ID:         "shell-escape",
			Message:    "subprocess with shell=True",
			Extensions: pyExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`(?s)\bsubprocess\.\w+\s*\([^)]*shell\s*=\s*True`),
		},
		{
			ID:         "dynamic-import",
			Message:    "dynamic import",
			Extensions: pyExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`\b__import__\s*\(|\bimportlib\.import_module\s*\(`),
		},
	}
}
