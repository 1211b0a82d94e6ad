// Package executor orchestrates the two-phase compile/run execution of a
// user program.
//
// An Executor owns one execution descriptor: the target language, optional
// compile and run command templates, working directory, timeout, template
// variables, and pending stdin inputs. Execute resolves the language's
// toolchain, merges its defaults into the descriptor, conditionally runs
// the compile phase, and then either surfaces the compiler's diagnostics or
// runs the program, yielding exactly one terminal result or one error.
//
// Executors are single-use: construct one per execution, configure it with
// the setters, call Execute once, and discard it.
//
// Usage:
//
//	exec, err := executor.New(logger, registry, executor.Options{Language: "python"})
//	if err != nil {
//	    return err
//	}
//	exec.PutVariable("file", "main.py")
//	exec.SetInputs("5", "6")
//	result, err := exec.Execute(ctx)
package executor
