package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"codestream-gateway/internal/prompt"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced block with prose around it",
			in:   "Here is the solution:\n```python\nimport sys\nprint(sys.stdin.read())\n```\nThis reads all input.",
			want: "import sys\nprint(sys.stdin.read())",
		},
		{
			name: "unfenced preamble before include",
			in:   "Sure! The fixed code:\n#include <stdio.h>\nint main() {\n    return 0;\n}\n// end of program",
			want: "#include <stdio.h>\nint main() {\n    return 0;\n}",
		},
		{
			name: "no start keyword keeps everything",
			in:   "n = int(input())\nprint(n * 2)\n",
			want: "n = int(input())\nprint(n * 2)",
		},
		{
			name: "trailing comments dropped",
			in:   "def f():\n    return 1\n\n# call f\n",
			want: "def f():\n    return 1",
		},
		{
			name: "unterminated fence",
			in:   "```java\npublic class Main {\n}\n",
			want: "public class Main {\n}",
		},
		{
			name: "fenced block keeps code before the first keyword",
			in:   "Here you go:\n```python\nMOD = 10**9 + 7\n\ndef solve(n):\n    return n % MOD\n\nprint(solve(int(input())))\n```\nDone.",
			want: "MOD = 10**9 + 7\n\ndef solve(n):\n    return n % MOD\n\nprint(solve(int(input())))",
		},
		{
			name: "unfenced declaration before function",
			in:   "Here is the solution:\nlet total = 0;\nfunction add(x) {\n  total += x;\n}\n",
			want: "let total = 0;\nfunction add(x) {\n  total += x;\n}",
		},
		{
			name: "unfenced setup line after prose",
			in:   "Sure, this reads the input first.\nn = int(input())\ndef f(x):\n    return x * 2\nprint(f(n))",
			want: "n = int(input())\ndef f(x):\n    return x * 2\nprint(f(n))",
		},
		{
			name: "trailing starred assignment is code",
			in:   "data = input().split()\n*rest, last = data",
			want: "data = input().split()\n*rest, last = data",
		},
		{
			name: "trailing pointer store is code",
			in:   "```c\nint main() {\n    int x;\n    int *p = &x;\n*p = 0;\n```",
			want: "int main() {\n    int x;\n    int *p = &x;\n*p = 0;",
		},
		{
			name: "trailing block comment dropped",
			in:   "```java\npublic class Main {\n}\n/*\n * done\n */\n```",
			want: "public class Main {\n}",
		},
		{
			name: "empty",
			in:   "  \n",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in, prompt.Python))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	in := "Explanation first.\n```cpp\n#include <iostream>\nint main() { std::cout << 1; }\n```"
	once := Clean(in, prompt.Cpp)
	assert.Equal(t, once, Clean(once, prompt.Cpp))
}

func TestCleanProseOnlyStripsFences(t *testing.T) {
	in := "The loop sums the list.\n```python\ntotal = sum(xs)\n```\nIt runs in O(n)."
	assert.Equal(t, "The loop sums the list.\ntotal = sum(xs)\nIt runs in O(n).", CleanProse(in, prompt.Python))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(""))
	assert.True(t, IsPlaceholder("def solve():\n    # Write your function here\n    pass"))
	assert.False(t, IsPlaceholder("print(1)"))
}

func TestParseTaskKind(t *testing.T) {
	k, ok := ParseTaskKind(" Explain ")
	assert.True(t, ok)
	assert.Equal(t, TaskExplain, k)

	_, ok = ParseTaskKind("summarize")
	assert.False(t, ok)
}
