// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads primer's settings from a YAML file.
//
// Every field has a default, so a config file only needs the settings that
// differ from them:
//
//	collection: circuits
//	backend: qdrant
//	qdrant:
//	  host: localhost
//	  port: 6334
//	embedding:
//	  model: nomic-embed-text
//	  document_prefix: "search_document: "
//	  query_prefix: "search_query: "
//
// Secrets such as API keys may be left out of the file and supplied through
// flags or the environment instead.
package config
