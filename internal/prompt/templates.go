package prompt

const promptTemplates = `
{{define "problem"}}
PROBLEM TITLE:
{{.Ctx.Title}} ({{.Ctx.Difficulty}})

PROBLEM STATEMENT:
{{.Ctx.Statement}}

INPUT FORMAT:
{{.Ctx.InputFormat}}

OUTPUT FORMAT:
{{.Ctx.OutputFormat}}

CONSTRAINTS:
{{.Ctx.Constraints}}

HINT:
{{.Ctx.Hint}}

SAMPLE INPUT:
{{.Ctx.SampleInput}}

SAMPLE OUTPUT:
{{.Ctx.SampleOutput}}
{{end}}

{{define "requirements"}}
CRITICAL REQUIREMENTS:
1. Write a COMPLETE, RUNNABLE {{.Lang.Name}} program that solves the problem.
2. Read input from standard input and write output to standard output.
3. Handle the exact input format and produce the exact output format.
4. Output ONLY the expected value, with no labels such as "Result:".
5. Include every import the program needs.
6. Do not include explanations, comments or markdown formatting.
7. Do not use placeholders or pseudo-code.
{{- if eq .LangID "java"}}
8. The public class MUST be named Main.
{{- end}}
{{end}}

{{define "generate"}}
You are an expert {{.Lang.Name}} developer tasked with solving a coding problem.
{{template "problem" .}}
INPUT/OUTPUT HANDLING EXAMPLE:
{{.IO}}
{{template "requirements" .}}
LANGUAGE-SPECIFIC GUIDELINES FOR {{.Lang.Name}}:
{{.Guidelines}}

Generate ONLY the complete solution code now:
{{end}}

{{define "generate_assisted"}}
You are an expert {{.Lang.Name}} developer tasked with solving a coding problem.
{{template "problem" .}}
PROBLEM ASSISTANCE:
{{.Ctx.Assistance}}

INPUT/OUTPUT HANDLING EXAMPLE:
{{.IO}}
{{template "requirements" .}}
LANGUAGE-SPECIFIC GUIDELINES FOR {{.Lang.Name}}:
{{.Guidelines}}

Generate ONLY the complete solution code now:
{{end}}

{{define "explain"}}
You are a patient {{.Lang.Name}} tutor. The student's program below has already
been run successfully. Explain how it works.

CODE:
` + "```" + `{{.Lang.Tag}}
{{.Ctx.Code}}
` + "```" + `

Structure the explanation as:
1. Overview: what the program does in two or three sentences.
2. Walkthrough: the important blocks in the order they execute.
3. Complexity: time and space complexity with a short justification.
4. Edge cases: inputs the program handles or would mishandle.

Use plain prose and short inline code references. Do not rewrite the program.
{{end}}

{{define "correct"}}
You are an expert {{.Lang.Name}} developer and code reviewer. Analyze and fix the
provided code so that it solves the given programming problem correctly.
{{template "problem" .}}
USER'S CODE TO CORRECT:
` + "```" + `{{.Lang.Tag}}
{{.Ctx.Code}}
` + "```" + `

I/O TEMPLATE:
{{.IO}}

LANGUAGE-SPECIFIC GUIDELINES:
{{.Guidelines}}

CORRECTION REQUIREMENTS:
1. Preserve the original variable names, function names and structure where possible.
2. Fix logical, syntax and runtime errors, including missing imports.
3. Handle edge cases and keep or improve the complexity.
4. Make the output match the expected format exactly.
5. The result must be a complete, runnable program.
{{- if eq .LangID "java"}}
6. Rename the public class to Main regardless of its original name.
{{- end}}

OUTPUT INSTRUCTIONS:
Provide ONLY the corrected code without explanations or markdown formatting.

CORRECTED CODE:
{{end}}
`

func ioExample(lang Language) string {
	switch lang {
	case JavaScript:
		return `const lines = require("fs").readFileSync(0, "utf8").trim().split("\n");
const n = parseInt(lines[0], 10);
console.log(solve(n));`
	case Java:
		return `import java.util.Scanner;

public class Main {
    public static void main(String[] args) {
        Scanner sc = new Scanner(System.in);
        int n = sc.nextInt();
        System.out.println(solve(n));
    }
}`
	case Cpp:
		return `#include <iostream>
using namespace std;

int main() {
    int n;
    cin >> n;
    cout << solve(n) << endl;
    return 0;
}`
	case C:
		return `#include <stdio.h>

int main(void) {
    int n;
    scanf("%d", &n);
    printf("%d\n", solve(n));
    return 0;
}`
	default:
		return `def solve(n):
    return n

if __name__ == "__main__":
    n = int(input().strip())
    print(solve(n))`
	}
}

func guidelines(lang Language) string {
	switch lang {
	case JavaScript:
		return `- Read all of stdin at once with fs.readFileSync(0)
- Use BigInt when values can exceed 2^53
- Avoid browser-only APIs`
	case Java:
		return `- Use a public class named Main
- Prefer BufferedReader for large inputs
- Use long when values can exceed 2^31`
	case Cpp:
		return `- Include every header you use
- Use long long when values can exceed 2^31
- Call ios::sync_with_stdio(false) for large inputs`
	case C:
		return `- Include every header you use
- Free what you allocate
- Use long long when values can exceed 2^31`
	default:
		return `- Use four-space indentation
- Include all imports at the top
- Use sys.stdin for large inputs`
	}
}
