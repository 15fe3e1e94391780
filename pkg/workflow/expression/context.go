package expression

// BuildContext creates an expression evaluation context from a workflow's
// execution context map.
//
// The workflow context typically contains:
//   - "inputs": workflow input values
//   - "steps": map of step results
//   - "loop": loop context (iteration, max_iterations, history) for loop steps
//
// This function extracts the relevant fields into a flat map structure
// suitable for expression evaluation:
//
//	{
//	    "inputs": {"name": "value", ...},
//	    "steps": {
//	        "step_id": {"content": "...", "status": "success"},
//	        ...
//	    },
//	    "loop": {
//	        "iteration": 0,
//	        "max_iterations": 10,
//	        "history": [...]
//	    }
//	}
func BuildContext(workflowContext map[string]interface{}) map[string]interface{} {
	ctx := make(map[string]interface{})

	if inputs, ok := workflowContext["inputs"]; ok {
		ctx["inputs"] = inputs
	} else {
		ctx["inputs"] = make(map[string]interface{})
	}

	if steps, ok := workflowContext["steps"]; ok {
		ctx["steps"] = steps
	} else {
		ctx["steps"] = make(map[string]interface{})
	}

	if loop, ok := workflowContext["loop"]; ok {
		ctx["loop"] = loop
	}

	// Also expose inputs at top level for convenience (allows both
	// inputs.x and a bare x in an expression).
	if inputs, ok := ctx["inputs"].(map[string]interface{}); ok {
		for k, v := range inputs {
			if _, exists := ctx[k]; !exists {
				ctx[k] = v
			}
		}
	}

	return ctx
}
