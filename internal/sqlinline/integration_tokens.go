package sqlinline

const QSelectIntegrationToken = `--sql 53c83a11-7da0-44f0-98a5-58553b0fea8b
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql da656114-1810-4a2b-a3a4-531e647420e0
insert into integration_tokens (id, provider, token, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, now(), now())
on conflict (provider) do update set
    token = excluded.token,
    updated_at = now();
`
