// Package reqcheck provides an in-process Go client for checking a
// requirements document against implementation documentation.
//
// Without options the client runs fully offline: requirements are found by
// rules, chunks are indexed with hashed bag-of-words vectors and verdicts come
// from the lexical heuristic. Configure a language model to get model verdicts.
//
//	client, _ := reqcheck.New(ctx,
//	    reqcheck.WithLLM("https://api.openai.com/v1", "gpt-4o-mini", key1, key2),
//	    reqcheck.WithReport(),
//	)
//	res, _ := client.CompareFiles(ctx, "tz.docx", "manual.pdf")
//	for _, v := range res.Verdicts {
//	    fmt.Println(v.Status, v.Criticality, v.Requirement)
//	}
package reqcheck
