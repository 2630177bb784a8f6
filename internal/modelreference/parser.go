package modelreference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/contentjet/contentjet/internal/models"
	"github.com/tidwall/gjson"
)

// ParseModelsPayload converts the models.dev payload into model references keyed by
// provider id and model id.
func ParseModelsPayload(data []byte) ([]models.ModelReference, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("parse models payload: empty payload")
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse models payload: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("parse models payload: expected object of providers")
	}

	var refs []models.ModelReference
	root.ForEach(func(providerKey, provider gjson.Result) bool {
		providerName := normalizeName(provider.Get("id").String(), providerKey.String())
		if providerName == "" {
			return true
		}
		provider.Get("models").ForEach(func(modelKey, model gjson.Result) bool {
			modelName := normalizeName(model.Get("id").String(), modelKey.String())
			if modelName == "" {
				return true
			}
			ref := models.ModelReference{
				ProviderName: providerName,
				ModelName:    modelName,
				ContextLimit: int(model.Get("limit.context").Int()),
				OutputLimit:  int(model.Get("limit.output").Int()),
			}
			refs = append(refs, ref)
			return true
		})
		return true
	})

	if len(refs) == 0 {
		return nil, nil
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].ProviderName == refs[j].ProviderName {
			return refs[i].ModelName < refs[j].ModelName
		}
		return refs[i].ProviderName < refs[j].ProviderName
	})
	return dedupe(refs), nil
}

func normalizeName(values ...string) string {
	for _, v := range values {
		if trimmed := strings.ToLower(strings.TrimSpace(v)); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// dedupe expects refs sorted by key and keeps the first row, filling zero limits from later duplicates.
func dedupe(refs []models.ModelReference) []models.ModelReference {
	out := refs[:0]
	for _, ref := range refs {
		if n := len(out); n > 0 && out[n-1].ProviderName == ref.ProviderName && out[n-1].ModelName == ref.ModelName {
			last := &out[n-1]
			if last.ContextLimit == 0 {
				last.ContextLimit = ref.ContextLimit
			}
			if last.OutputLimit == 0 {
				last.OutputLimit = ref.OutputLimit
			}
			continue
		}
		out = append(out, ref)
	}
	return out
}
